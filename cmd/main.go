package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pot-code/course-player/internal/course"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/pot-code/course-player/internal/infrastructure/driver"
	"github.com/pot-code/course-player/internal/infrastructure/logging"
	"github.com/pot-code/course-player/internal/infrastructure/uuid"
	ihttp "github.com/pot-code/course-player/internal/interfaces/http"
	"github.com/pot-code/course-player/internal/progress"
	"github.com/pot-code/course-player/internal/submission"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		logger.Fatal("Failed to create DB connection", zap.Error(err))
	}
	defer dbConn.Close(context.Background())
	logger.Debug("Create DB connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)
	if option.Database.Migrate {
		if err := driver.Migrate(context.Background(), dbConn); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}

	var kv driver.KeyValueDB
	if option.KVStore.Host == "" {
		logger.Warn("kv.host is empty, latest-progress pointers are kept in memory")
		kv = driver.NewMemoryKV()
	} else {
		rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		defer rdb.Close()
		kv = rdb
	}

	UUIDGenerator, err := uuid.NewNanoIDGenerator(option.Security.IDLength)
	if err != nil {
		logger.Fatal("Failed to create id generator", zap.Error(err))
	}

	CourseRepo := course.NewCourseRepository(dbConn)
	CourseUseCase := course.NewCourseUseCase(CourseRepo)

	ProgressRepo := progress.NewProgressRepository(dbConn)
	ProgressUseCase := progress.NewProgressUseCase(ProgressRepo, CourseRepo, kv, option.KVStore.LatestTTL)

	SubmissionRepo := submission.NewSubmissionRepository(dbConn)
	SubmissionUseCase := submission.NewSubmissionUseCase(SubmissionRepo, UUIDGenerator)

	app := ihttp.NewServer(dbConn, kv, option, CourseUseCase, ProgressUseCase, SubmissionUseCase, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown server", zap.Error(err))
		}
	}()

	if err := ihttp.Serve(app, option); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}
}
