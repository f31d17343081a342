package main

import (
	"net/http"

	"github.com/Luismorlan/birdnest/notification"
	"github.com/Luismorlan/birdnest/server"
	"github.com/Luismorlan/birdnest/server/middlewares"
	. "github.com/Luismorlan/birdnest/utils"
	"github.com/Luismorlan/birdnest/utils/dotenv"
	. "github.com/Luismorlan/birdnest/utils/flag"
	. "github.com/Luismorlan/birdnest/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	CloseProfiler()
	CloseTracer()
	Log.Info("api server shutdown")
}

func main() {
	Parse()
	defer cleanup()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	InitTracer()
	InitProfiler()
	InitStatsd()

	db, err := GetDBConnection()
	if err != nil {
		Log.Fatal("cannot connect to DB: ", err)
	}
	DatabaseSetupAndMigration(db)

	// Redis is optional: without it notification read state is served from
	// Postgres alone.
	statusStore, err := GetRedisStatusStore()
	if err != nil {
		Log.Warn("redis unavailable, notification read cache disabled: ", err)
		statusStore = nil
	}
	apiServer := server.NewServer(db, notification.NewService(db, statusStore))

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()

	router.Use(cors.Default())
	router.Use(gintrace.Middleware(ServiceName))
	if !ByPassAuth {
		middlewares.Setup()
		router.Use(middlewares.JWT())
	}

	apiServer.RegisterRoutes(router)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	Log.Info("api server starts up")
	router.Run(":8080")
}
