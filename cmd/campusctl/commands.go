package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
	apihttp "github.com/fyrsmithlabs/campusconnect/internal/http"
	"github.com/fyrsmithlabs/campusconnect/internal/matching"
)

// Remote calls may sit in retry backoff for over a minute.
const requestTimeout = 3 * time.Minute

type inputFlags struct {
	userFile       string
	activitiesFile string
	demo           bool
}

func (f *inputFlags) register(cmd *cobra.Command, withActivities bool) {
	cmd.Flags().StringVar(&f.userFile, "user", "", "JSON file with the user profile")
	if withActivities {
		cmd.Flags().StringVar(&f.activitiesFile, "activities", "", "JSON file with an array of activities")
	}
	cmd.Flags().BoolVar(&f.demo, "demo", false, "use the built-in sample profile and activities")
}

func (f *inputFlags) user() (campus.User, error) {
	if f.demo && f.userFile == "" {
		return demoUser, nil
	}
	if f.userFile == "" {
		return campus.User{}, fmt.Errorf("--user is required (or pass --demo)")
	}
	var u campus.User
	return u, readJSON(f.userFile, &u)
}

func (f *inputFlags) activities() ([]campus.Activity, error) {
	if f.demo && f.activitiesFile == "" {
		return demoActivities, nil
	}
	if f.activitiesFile == "" {
		return nil, fmt.Errorf("--activities is required (or pass --demo)")
	}
	var a []campus.Activity
	return a, readJSON(f.activitiesFile, &a)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check campusd server health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp apihttp.HealthResponse
			if err := newClient(opts.server, 5*time.Second).do(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			printLine(cmd, "Server Status: %s", resp.Status)
			printLine(cmd, "Server URL: %s", opts.server)
			return nil
		},
	}
}

func newGreetCmd(opts *rootOptions) *cobra.Command {
	in := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "greet",
		Short: "Fetch a welcome greeting for a user",
		Example: `  campusctl greet --user alex.json
  campusctl greet --demo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := in.user()
			if err != nil {
				return err
			}
			var resp apihttp.GreetingResponse
			err = newClient(opts.server, requestTimeout).do(cmd.Context(), http.MethodPost, "/api/v1/greeting",
				apihttp.GreetingRequest{User: user}, &resp)
			if err != nil {
				return err
			}
			printLine(cmd, "%s", resp.Greeting)
			return nil
		},
	}
	in.register(cmd, false)
	return cmd
}

func newMatchesCmd(opts *rootOptions) *cobra.Command {
	in := &inputFlags{}
	var offline bool
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Rank activities for a user",
		Example: `  campusctl matches --user alex.json --activities feed.json
  campusctl matches --demo --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := in.user()
			if err != nil {
				return err
			}
			acts, err := in.activities()
			if err != nil {
				return err
			}

			var matches []campus.MatchSuggestion
			if offline {
				matches = matching.LocalMatches(user, acts)
			} else {
				var resp apihttp.MatchesResponse
				err = newClient(opts.server, requestTimeout).do(cmd.Context(), http.MethodPost, "/api/v1/matches",
					apihttp.MatchesRequest{User: user, Activities: acts}, &resp)
				if err != nil {
					return err
				}
				matches = resp.Matches
			}
			printMatches(cmd, matches, acts)
			return nil
		},
	}
	in.register(cmd, true)
	cmd.Flags().BoolVar(&offline, "offline", false, "score locally without contacting the server")
	return cmd
}

func newInsightsCmd(opts *rootOptions) *cobra.Command {
	in := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Fetch greeting and matches together",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := in.user()
			if err != nil {
				return err
			}
			acts, err := in.activities()
			if err != nil {
				return err
			}

			var resp apihttp.InsightsResponse
			err = newClient(opts.server, requestTimeout).do(cmd.Context(), http.MethodPost, "/api/v1/insights",
				apihttp.MatchesRequest{User: user, Activities: acts}, &resp)
			if err != nil {
				return err
			}

			printLine(cmd, "%s", resp.Greeting)
			printMatches(cmd, resp.Matches, acts)
			if resp.QuotaExhausted {
				fmt.Fprintln(cmd.ErrOrStderr(), "[campusctl] remote quota exhausted; results are partial. Register a personal key with `campusctl key set`.")
			}
			return nil
		},
	}
	in.register(cmd, true)
	return cmd
}

func printMatches(cmd *cobra.Command, matches []campus.MatchSuggestion, acts []campus.Activity) {
	titles := make(map[string]string, len(acts))
	for _, a := range acts {
		titles[a.ID] = a.Title
	}
	if len(matches) == 0 {
		printLine(cmd, "No matches.")
		return
	}
	for i, m := range matches {
		title := titles[m.ActivityID]
		if title == "" {
			title = "(unknown activity)"
		}
		printLine(cmd, "%d. [%3.0f] %s %s - %s", i+1, m.CompatibilityScore, m.ActivityID, title, m.Reason)
	}
}

func newKeyCmd(opts *rootOptions) *cobra.Command {
	key := &cobra.Command{
		Use:   "key",
		Short: "Manage personal API keys",
	}

	keyPath := func(userID string) string {
		return "/api/v1/users/" + url.PathEscape(userID) + "/api-key"
	}

	key.AddCommand(
		&cobra.Command{
			Use:   "set <user-id> <api-key>",
			Short: "Register a personal API key for a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := newClient(opts.server, 10*time.Second).do(cmd.Context(), http.MethodPut, keyPath(args[0]),
					apihttp.APIKeyRequest{APIKey: args[1]}, nil)
				if err != nil {
					return err
				}
				printLine(cmd, "Personal key registered for %s", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear <user-id>",
			Short: "Remove a user's personal API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := newClient(opts.server, 10*time.Second).do(cmd.Context(), http.MethodDelete, keyPath(args[0]), nil, nil); err != nil {
					return err
				}
				printLine(cmd, "Personal key cleared for %s", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "status <user-id>",
			Short: "Show whether a user has a personal API key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var st apihttp.APIKeyStatus
				if err := newClient(opts.server, 10*time.Second).do(cmd.Context(), http.MethodGet, keyPath(args[0]), nil, &st); err != nil {
					return err
				}
				printLine(cmd, "%s has personal key: %t", args[0], st.HasPersonalKey)
				return nil
			},
		},
	)
	return key
}
