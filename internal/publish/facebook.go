package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/go-resty/resty/v2"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// FacebookConfig configures a FacebookPublisher
type FacebookConfig struct {
	PageID      string
	AccessToken string
	APIVersion  string
	BaseURL     string
	Timeout     time.Duration
}

// FacebookPublisher posts to a page through the Graph API
type FacebookPublisher struct {
	client *resty.Client
	pageID string
	token  string
}

type graphResponse struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	Error  *graphError `json:"error"`
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func NewFacebookPublisher(cfg FacebookConfig) *FacebookPublisher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.APIVersion).
		SetTimeout(defaultTimeout(cfg.Timeout))

	return &FacebookPublisher{
		client: client,
		pageID: cfg.PageID,
		token:  cfg.AccessToken,
	}
}

// Publish creates a photo post when the post has an image and a text post
// otherwise. The returned reference is the Graph post id.
func (f *FacebookPublisher) Publish(ctx context.Context, post Post) (string, error) {
	var result graphResponse
	req := f.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result)

	var (
		resp *resty.Response
		err  error
	)

	switch ref := post.ImageRef; {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		resp, err = req.
			SetFormData(map[string]string{
				"url":          ref,
				"caption":      post.Caption(),
				"access_token": f.token,
			}).
			Post(fmt.Sprintf("/%s/photos", f.pageID))
	case ref != "":
		resp, err = req.
			SetFile("source", strings.TrimPrefix(ref, "file://")).
			SetFormData(map[string]string{
				"caption":      post.Caption(),
				"access_token": f.token,
			}).
			Post(fmt.Sprintf("/%s/photos", f.pageID))
	default:
		resp, err = req.
			SetFormData(map[string]string{
				"message":      post.Caption(),
				"access_token": f.token,
			}).
			Post(fmt.Sprintf("/%s/feed", f.pageID))
	}

	if err != nil {
		perr := &Error{Provider: "facebook", Err: err}
		if resp != nil {
			perr.Status = resp.StatusCode()
		}
		return "", perr
	}
	if result.Error != nil {
		return "", &Error{
			Provider: "facebook",
			Status:   resp.StatusCode(),
			Err:      fmt.Errorf("graph error %d (%s): %s", result.Error.Code, result.Error.Type, result.Error.Message),
		}
	}
	if resp.IsError() {
		return "", &Error{Provider: "facebook", Status: resp.StatusCode(), Err: errors.New(resp.Status())}
	}

	ref := result.PostID
	if ref == "" {
		ref = result.ID
	}
	if ref == "" {
		return "", &Error{Provider: "facebook", Status: resp.StatusCode(), Err: errors.New("response carried no post id")}
	}

	logger.Get().Info().
		Str("page_id", f.pageID).
		Str("publish_ref", ref).
		Msg("Published post")

	return ref, nil
}
