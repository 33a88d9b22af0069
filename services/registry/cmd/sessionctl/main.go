package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sessiond/services/registry"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Admin utility for the sessiond registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("api", "http://localhost:8080", "Base URL of the registry API")

	cmd.AddCommand(newSessionsCommand())
	cmd.AddCommand(newDevicesCommand())
	return cmd
}

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session inspection and takeover operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsKickCommand())
	return cmd
}

func newSessionsListCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every session record for a user, newest activity first",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _ := cmd.Flags().GetString("api")

			var out struct {
				Sessions []registry.Session `json:"sessions"`
			}
			url := fmt.Sprintf("%s/v1/sessions?user_id=%s", strings.TrimRight(api, "/"), userID)
			if err := call(cmd.Context(), http.MethodGet, url, nil, &out); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDEVICE\tOS\tACTIVE\tLAST ACTIVE")
			for _, s := range out.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					s.ID, s.DeviceName, s.OperatingSystem, s.IsActive,
					s.LastActiveAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id to list sessions for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsKickCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "kick",
		Short: "Force-deactivate a session by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _ := cmd.Flags().GetString("api")

			var out struct {
				Session registry.Session `json:"session"`
			}
			url := fmt.Sprintf("%s/v1/sessions/%s/kick", strings.TrimRight(api, "/"), sessionID)
			if err := call(cmd.Context(), http.MethodPost, url, nil, &out); err != nil {
				return err
			}

			fmt.Printf("kicked session %s (%s, user %s)\n",
				out.Session.ID, out.Session.DeviceName, out.Session.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "id", "", "Session id to kick")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Device registration lookups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newDevicesShowCommand())
	return cmd
}

func newDevicesShowCommand() *cobra.Command {
	var fingerprint string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show which user first registered from a fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _ := cmd.Flags().GetString("api")

			body := map[string]any{"fingerprint": fingerprint}
			var out struct {
				Registration *registry.DeviceRegistration `json:"registration"`
			}
			url := strings.TrimRight(api, "/") + "/v1/devices/check"
			if err := call(cmd.Context(), http.MethodPost, url, body, &out); err != nil {
				return err
			}

			if out.Registration == nil {
				fmt.Println("device not registered")
				return nil
			}
			fmt.Printf("fingerprint %s registered to user %s at %s\n",
				out.Registration.Fingerprint, out.Registration.UserID,
				out.Registration.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Device fingerprint hash")
	_ = cmd.MarkFlagRequired("fingerprint")
	return cmd
}

func call(ctx context.Context, method, url string, body, dest any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
