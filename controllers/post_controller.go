package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dopemusic/dopesite/assets"
	"github.com/dopemusic/dopesite/config"
	"github.com/dopemusic/dopesite/middleware"
	"github.com/dopemusic/dopesite/models"
	"github.com/dopemusic/dopesite/store"
	"github.com/dopemusic/dopesite/utils"
)

// MediaPath lists every post and is where post forms return to.
const MediaPath = "/media"

// PostPolicy decides who may change a post and how concurrent edits resolve.
type PostPolicy struct {
	Edit     string
	Conflict string
}

// PostController handles the media feed and post management.
type PostController struct {
	posts  *store.PostStore
	assets *assets.Manager
	policy PostPolicy
	view   View
	logger *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *store.PostStore, am *assets.Manager, policy PostPolicy, view View, logger *zap.Logger) *PostController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostController{posts: posts, assets: am, policy: policy, view: view, logger: logger}
}

// Media lists all posts, newest first.
func (p *PostController) Media(ctx *gin.Context) {
	posts, err := p.posts.ListAll(ctx.Request.Context())
	if err != nil {
		p.logger.Error("list posts failed", zap.Error(err))
		p.view.Error(ctx, http.StatusInternalServerError, "Posts could not be loaded.")
		return
	}
	p.view.HTML(ctx, http.StatusOK, "media.html", gin.H{"Posts": posts})
}

// CreateForm shows an empty post form.
func (p *PostController) CreateForm(ctx *gin.Context, _ uint) {
	p.view.HTML(ctx, http.StatusOK, "create.html", gin.H{"Title": "", "Text": ""})
}

// Create stores a new post with an optional image.
func (p *PostController) Create(ctx *gin.Context, userID uint) {
	title := ctx.PostForm("title")
	text := ctx.PostForm("text")
	form := gin.H{"Title": title, "Text": text}

	in := store.PostInput{
		Title:    utils.SanitizeTitle(title),
		Text:     text,
		AuthorID: userID,
	}
	if err := store.ValidatePost(in); err != nil {
		middleware.AddNotice(ctx, utils.NoticeWarning, validationMessage(err))
		p.view.HTML(ctx, http.StatusUnprocessableEntity, "create.html", form)
		return
	}

	if ref := p.stageUpload(ctx); ref != "" {
		in.ImageFilename = &ref
	}

	post, err := p.posts.Create(ctx.Request.Context(), in)
	if err != nil {
		p.discard(in.ImageFilename)
		p.logger.Error("create post failed", zap.Uint("user_id", userID), zap.Error(err))
		middleware.AddNotice(ctx, utils.NoticeDanger, "An error occurred while creating the post: "+err.Error())
		p.view.HTML(ctx, http.StatusInternalServerError, "create.html", form)
		return
	}

	p.logger.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("user_id", userID), zap.Bool("image", post.HasImage()))
	middleware.AddNotice(ctx, utils.NoticeSuccess, "Post created successfully!")
	ctx.Redirect(http.StatusFound, MediaPath)
}

// EditForm shows the post form filled with the stored values.
func (p *PostController) EditForm(ctx *gin.Context, userID uint) {
	post, ok := p.load(ctx, userID)
	if !ok {
		return
	}
	p.view.HTML(ctx, http.StatusOK, "edit.html", gin.H{
		"Post":    post,
		"Title":   post.Title,
		"Text":    post.Text,
		"Version": post.Version,
	})
}

// Edit overwrites title and text and applies the image directives. A new
// upload replaces the current image; otherwise remove_image clears it.
func (p *PostController) Edit(ctx *gin.Context, userID uint) {
	post, ok := p.load(ctx, userID)
	if !ok {
		return
	}

	title := ctx.PostForm("title")
	text := ctx.PostForm("text")
	removeImage := ctx.PostForm("remove_image") != ""
	version, _ := strconv.ParseUint(ctx.PostForm("version"), 10, 64)
	form := gin.H{"Post": post, "Title": title, "Text": text, "Version": version}

	in := store.PostInput{
		Title:         utils.SanitizeTitle(title),
		Text:          text,
		ImageFilename: post.ImageFilename,
		AuthorID:      post.AuthorID,
	}
	if p.policy.Conflict == config.ConflictRejectStale {
		in.ExpectedVersion = uint(version)
		if in.ExpectedVersion == 0 {
			in.ExpectedVersion = post.Version
		}
	}
	if err := store.ValidatePost(in); err != nil {
		middleware.AddNotice(ctx, utils.NoticeWarning, validationMessage(err))
		p.view.HTML(ctx, http.StatusUnprocessableEntity, "edit.html", form)
		return
	}

	staged := p.stageUpload(ctx)
	if staged != "" {
		in.ImageFilename = &staged
	} else if removeImage {
		in.ImageFilename = nil
	}

	updated, err := p.posts.Update(ctx.Request.Context(), post.ID, in)
	if err != nil {
		if staged != "" {
			p.discard(&staged)
		}
		switch {
		case errors.Is(err, store.ErrPostNotFound):
			p.view.NotFound(ctx)
		case errors.Is(err, store.ErrStaleEdit):
			middleware.AddNotice(ctx, utils.NoticeWarning, "This post was changed by someone else. Review the current version and submit again.")
			fresh, getErr := p.posts.Get(ctx.Request.Context(), post.ID)
			if getErr != nil {
				fresh = post
			}
			form["Post"] = fresh
			form["Version"] = fresh.Version
			p.view.HTML(ctx, http.StatusConflict, "edit.html", form)
		default:
			p.logger.Error("update post failed", zap.Uint("post_id", post.ID), zap.Error(err))
			middleware.AddNotice(ctx, utils.NoticeDanger, "An error occurred while updating the post: "+err.Error())
			p.view.HTML(ctx, http.StatusInternalServerError, "edit.html", form)
		}
		return
	}

	// the old file goes only after the new reference is committed
	if post.HasImage() && post.Image() != updated.Image() {
		p.removeAsset(ctx, post.Image())
	}

	p.logger.Info("post updated", zap.Uint("post_id", post.ID), zap.Uint("user_id", userID), zap.Uint("version", updated.Version))
	middleware.AddNotice(ctx, utils.NoticeSuccess, "Post updated successfully!")
	ctx.Redirect(http.StatusFound, MediaPath)
}

// Delete removes a post and its image file.
func (p *PostController) Delete(ctx *gin.Context, userID uint) {
	post, ok := p.load(ctx, userID)
	if !ok {
		return
	}

	var assetErr error
	err := p.posts.Delete(ctx.Request.Context(), post.ID, func(deleted models.Post) error {
		if deleted.HasImage() {
			assetErr = p.assets.Remove(deleted.Image())
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			p.view.NotFound(ctx)
			return
		}
		p.logger.Error("delete post failed", zap.Uint("post_id", post.ID), zap.Error(err))
		middleware.AddNotice(ctx, utils.NoticeDanger, "An error occurred while deleting the post: "+err.Error())
		ctx.Redirect(http.StatusFound, MediaPath)
		return
	}

	if assetErr != nil {
		p.logger.Warn("image of deleted post not removed", zap.Uint("post_id", post.ID), zap.String("ref", post.Image()), zap.Error(assetErr))
		middleware.AddNotice(ctx, utils.NoticeWarning, "The image file could not be deleted.")
	}
	p.logger.Info("post deleted", zap.Uint("post_id", post.ID), zap.Uint("user_id", userID))
	middleware.AddNotice(ctx, utils.NoticeSuccess, "Post deleted successfully!")
	ctx.Redirect(http.StatusFound, MediaPath)
}

// load resolves :post_id and checks the edit policy. It writes the error
// response itself and reports false when the handler must stop.
func (p *PostController) load(ctx *gin.Context, userID uint) (models.Post, bool) {
	id, ok := parseID(ctx.Param("post_id"))
	if !ok {
		p.view.NotFound(ctx)
		return models.Post{}, false
	}
	post, err := p.posts.Get(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			p.view.NotFound(ctx)
			return models.Post{}, false
		}
		p.logger.Error("load post failed", zap.Uint("post_id", id), zap.Error(err))
		p.view.Error(ctx, http.StatusInternalServerError, "The post could not be loaded.")
		return models.Post{}, false
	}
	if p.policy.Edit == config.PolicyAuthorOnly && post.AuthorID != userID {
		p.view.Error(ctx, http.StatusForbidden, "You can only change your own posts.")
		return models.Post{}, false
	}
	return post, true
}

// stageUpload stores the "image" file of the form, if any. A rejected or
// failed upload becomes a warning notice and the post is saved without it.
func (p *PostController) stageUpload(ctx *gin.Context) string {
	fh, err := ctx.FormFile("image")
	if err != nil || fh == nil || fh.Filename == "" {
		return ""
	}
	f, err := fh.Open()
	if err != nil {
		p.logger.Warn("open upload failed", zap.String("filename", fh.Filename), zap.Error(err))
		middleware.AddNotice(ctx, utils.NoticeWarning, "The image could not be saved.")
		return ""
	}
	defer f.Close()

	ref, err := p.assets.Accept(fh.Filename, f)
	switch {
	case err == nil:
		return ref
	case errors.Is(err, assets.ErrRejected):
		middleware.AddNotice(ctx, utils.NoticeWarning, "Invalid image file ("+err.Error()+"). Allowed types: png, jpg, jpeg, gif.")
	default:
		p.logger.Warn("store upload failed", zap.String("filename", fh.Filename), zap.Error(err))
		middleware.AddNotice(ctx, utils.NoticeWarning, "The image could not be saved.")
	}
	return ""
}

// discard drops a staged file whose post was never committed.
func (p *PostController) discard(ref *string) {
	if ref == nil || *ref == "" {
		return
	}
	if err := p.assets.Remove(*ref); err != nil {
		p.logger.Warn("staged image not removed", zap.String("ref", *ref), zap.Error(err))
	}
}

func (p *PostController) removeAsset(ctx *gin.Context, ref string) {
	if err := p.assets.Remove(ref); err != nil {
		p.logger.Warn("superseded image not removed", zap.String("ref", ref), zap.Error(err))
		middleware.AddNotice(ctx, utils.NoticeWarning, "The previous image file could not be deleted.")
	}
}

func validationMessage(err error) string {
	var ve *store.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) == 0 && len(ve.TooLong) > 0 {
		return fmt.Sprintf("Title must be at most %d characters.", store.MaxTitleLength)
	}
	return "Title and text are required."
}
