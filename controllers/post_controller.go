package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/repositories"
)

// PostController handles listing posts (tours, stays, experiences)
type PostController struct {
	posts *repositories.PostRepository
}

// NewPostController creates a new post controller
func NewPostController(db *mongo.Client) *PostController {
	return &PostController{posts: repositories.NewPostRepository(db)}
}

// CreatePost creates a new post owned by the authenticated user
func (c *PostController) CreatePost(ctx echo.Context) error {
	ownerID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	var request models.PostRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if err := ctx.Validate(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	now := time.Now()
	post := models.Post{
		ID:                   primitive.NewObjectID(),
		OwnerID:              ownerID,
		Title:                request.Title,
		Description:          request.Description,
		Location:             request.Location,
		PricePerNight:        request.PricePerNight,
		Currency:             request.Currency,
		MaxGuests:            request.MaxGuests,
		Images:               request.Images,
		Status:               models.PostStatusDraft,
		CancellationPolicies: request.CancellationPolicies,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := c.posts.Insert(ctx.Request().Context(), &post); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error creating post",
		})
	}

	return ctx.JSON(http.StatusCreated, models.PostResponse{
		Status:  http.StatusCreated,
		Message: "Post created successfully",
		Data:    &post,
	})
}

// GetPost retrieves a single post by id
func (c *PostController) GetPost(ctx echo.Context) error {
	postID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid post ID",
		})
	}

	post, err := c.posts.GetByID(ctx.Request().Context(), postID)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.PostResponse{
		Status:  http.StatusOK,
		Message: "Post retrieved successfully",
		Data:    post,
	})
}

// GetPublishedPosts lists posts that are open for booking
func (c *PostController) GetPublishedPosts(ctx echo.Context) error {
	posts, err := c.posts.FindPublished(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error retrieving posts",
		})
	}

	return ctx.JSON(http.StatusOK, models.PostsResponse{
		Status:  http.StatusOK,
		Message: "Posts retrieved successfully",
		Data:    posts,
	})
}

// UpdatePost updates a post owned by the authenticated user
func (c *PostController) UpdatePost(ctx echo.Context) error {
	ownerID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	postID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid post ID",
		})
	}

	var request models.PostRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if err := ctx.Validate(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	post, err := c.posts.Update(ctx.Request().Context(), postID, ownerID, &request)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.PostResponse{
		Status:  http.StatusOK,
		Message: "Post updated successfully",
		Data:    post,
	})
}

// PublishPost makes a draft post bookable
func (c *PostController) PublishPost(ctx echo.Context) error {
	ownerID, err := authenticatedUserID(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	postID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid post ID",
		})
	}

	post, err := c.posts.Publish(ctx.Request().Context(), postID, ownerID)
	if err != nil {
		return bookingError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, models.PostResponse{
		Status:  http.StatusOK,
		Message: "Post published successfully",
		Data:    post,
	})
}
