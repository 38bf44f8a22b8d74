package clicmd

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/biopkg/bdp/internal/httpx"
)

var (
	searchPage    int
	searchPerPage int
)

// searchURL builds the unified-search endpoint URL; page and per_page are
// appended only when set (zero means server default).
func searchURL(base, query string, page, perPage int) string {
	u := base + "/api/v1/search?query=" + url.QueryEscape(query)
	if page > 0 {
		u += fmt.Sprintf("&page=%d", page)
	}
	if perPage > 0 {
		u += fmt.Sprintf("&per_page=%d", perPage)
	}
	return u
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the registry for data sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadClientConfig()
		endpoint := searchURL(cfg.ServerURL, args[0], searchPage, searchPerPage)

		req := httpx.NewRequest("GET", endpoint)
		resp, err := httpx.Execute(context.Background(), req)
		if err != nil {
			return fmt.Errorf("search request failed: %w", err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("search failed: %s", resp.BodyString)
		}
		fmt.Println(resp.BodyString)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 0, "result page to fetch")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 0, "results per page")
}
