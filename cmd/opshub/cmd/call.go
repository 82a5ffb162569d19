package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opshub-io/opshub/internal/apiclient"
)

var callCmd = &cobra.Command{
	Use:   "call METHOD PATH",
	Short: "Issue a raw API request",
	Long: `Issue a raw request through the resilient dispatcher. The response body is
pretty-printed when it is JSON.

Examples:
  opshub call GET /users
  opshub call POST /badges -d '{"label":"contractor"}'
  opshub call DELETE /payments/42
`,
	Args: cobra.ExactArgs(2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringP("data", "d", "", "JSON request body")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path := args[1]
	data, _ := cmd.Flags().GetString("data")

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return fmt.Errorf("unsupported method: %s", method)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := buildClient(cfg, st, logger)
	if err != nil {
		return err
	}

	req := apiclient.Request{Method: method, Path: path}
	if data != "" {
		var body any
		if err := json.Unmarshal([]byte(data), &body); err != nil {
			return fmt.Errorf("--data is not valid JSON: %w", err)
		}
		req.Body = body
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	resp, err := client.Call(ctx, req)
	if err != nil {
		return err
	}

	if resp.OK() {
		fmt.Println(styleOK.Render(fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status))))
	} else {
		fmt.Println(styleErr.Render(fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status))))
	}

	if len(resp.Body) > 0 {
		fmt.Println(prettyJSON(resp.Body))
	}
	if !resp.OK() {
		return fmt.Errorf("request failed with status %d", resp.Status)
	}
	return nil
}

func prettyJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
