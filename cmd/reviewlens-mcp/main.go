package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/reviewlens/models"
)

func main() {
	apiURL := os.Getenv("REVIEWLENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("REVIEWLENS_API_KEY")

	s := server.NewMCPServer(
		"reviewlens",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeReviewsTool := mcp.NewTool("scrape_reviews",
		mcp.WithDescription("Extract customer reviews from a product or review page. Follows pagination and returns each review's title, body, rating and reviewer."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the product or review page"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of review pages to read (default: server limit)"),
		),
	)
	s.AddTool(scrapeReviewsTool, handleScrapeReviews(newClient(apiURL, apiKey)))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiURL, apiKey string) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(150 * time.Second)
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return c
}

func handleScrapeReviews(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		query := map[string]string{"page": target}
		if n := request.GetInt("max_pages", 0); n > 0 {
			query["max_pages"] = strconv.Itoa(n)
		}

		var body models.ReviewsResponse
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(query).
			SetResult(&body).
			SetError(&body).
			Get("/api/reviews")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		if resp.IsError() {
			msg := body.Error
			if msg == "" {
				msg = resp.Status()
			}
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", body.Kind, msg)), nil
		}
		if len(body.Reviews) == 0 && body.Error != "" {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", body.Kind, body.Error)), nil
		}

		return mcp.NewToolResultText(formatReviews(&body)), nil
	}
}

// formatReviews renders a response as plain text for the model.
func formatReviews(r *models.ReviewsResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", r.SourceURL)
	if r.Product != nil && r.Product.Title != "" {
		fmt.Fprintf(&sb, "Product: %s\n", r.Product.Title)
	}
	fmt.Fprintf(&sb, "Reviews: %d from %d page(s)\n", len(r.Reviews), r.PageCount)
	if r.Warning != "" {
		fmt.Fprintf(&sb, "Warning: [%s] %s\n", r.Kind, r.Warning)
	}

	for i, rev := range r.Reviews {
		rating := "unrated"
		if rev.Rating != nil {
			rating = strconv.FormatFloat(*rev.Rating, 'f', -1, 64) + " stars"
		}
		fmt.Fprintf(&sb, "\n--- [%d] %s (%s) by %s ---\n%s\n", i+1, rev.Title, rating, rev.Reviewer, rev.Body)
	}
	return sb.String()
}
