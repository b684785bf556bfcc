package http

import (
	"github.com/labstack/echo/v4"
	infra "github.com/pot-code/course-player/internal/infrastructure"
)

func v1Endpoint(
	websocket *infra.Websocket,
	CourseHandler *CourseHandler,
	ProgressHandler *ProgressHandler,
	SubmissionHandler *SubmissionHandler,
	jwtMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{jwtMiddleware},
		groups: []*apiGroup{
			{
				prefix: "/courses",
				routes: []*route{
					{"GET", "/:courseId/outline", CourseHandler.HandleGetOutline, nil},
				},
			},
			{
				prefix: "/progress",
				routes: []*route{
					{"GET", "/course/:courseId/latest", ProgressHandler.HandleGetLatestProgress, nil},
					{"GET", "/sub_lesson/:id", ProgressHandler.HandleGetProgress, nil},
					{"POST", "/sub_lesson/:id", ProgressHandler.HandlePostProgress, nil},
				},
			},
			{
				prefix: "/submission",
				routes: []*route{
					{"PUT", "", SubmissionHandler.HandleUpdateSubmission, nil},
					{"POST", "", SubmissionHandler.HandleCreateSubmission, nil},
				},
			},
			{
				prefix: "/users",
				routes: []*route{
					{"GET", "/:userId/submission", SubmissionHandler.HandleListUserSubmission, nil},
				},
			},
			{
				prefix: "/ws",
				routes: []*route{
					{"GET", "/progress", websocket.WithHeartbeat(ProgressHandler.HandleProgressStream), nil},
				},
			},
		},
	}
}
