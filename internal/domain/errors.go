package domain

import "errors"

// ErrCourseNotFound course does not exist
var ErrCourseNotFound = errors.New("Course not found")

// ErrSubLessonNotFound sub-lesson does not exist
var ErrSubLessonNotFound = errors.New("Sub-lesson not found")

// ErrDuplicatedSubmission unique key constraint violation on (assignment, user)
var ErrDuplicatedSubmission = errors.New("Submission already exists for this assignment")

// ErrForbiddenUser token user differs from the requested user
var ErrForbiddenUser = errors.New("Operating on another user's records is not allowed")
