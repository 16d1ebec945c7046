package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/controllers"
	"github.com/andar-app/andar_backend/middleware"
)

// RegisterPostRoutes registers listing post routes
func RegisterPostRoutes(e *echo.Echo, db *mongo.Client) {
	postController := controllers.NewPostController(db)

	// Browsing published posts requires no authentication
	e.GET("/api/posts", postController.GetPublishedPosts)
	e.GET("/api/posts/:id", postController.GetPost)

	postGroup := e.Group("/api/posts")
	postGroup.Use(middleware.JWTMiddleware())

	postGroup.POST("", postController.CreatePost)
	postGroup.PUT("/:id", postController.UpdatePost)
	postGroup.PUT("/:id/publish", postController.PublishPost)
}
