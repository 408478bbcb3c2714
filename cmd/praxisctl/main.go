package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/config"
	"github.com/clintrovert/praxis/internal/github"
	"github.com/clintrovert/praxis/internal/jira"
	"github.com/clintrovert/praxis/internal/repomap"
	"github.com/clintrovert/praxis/internal/tracker"
	"github.com/clintrovert/praxis/internal/validate"
	"github.com/clintrovert/praxis/pkg/types"
)

var (
	configPath  string
	verboseFlag bool

	trackIdentity string
	trackRepo     string
	trackValidate bool
	trackComment  bool
	trackJSON     bool

	projectValidate bool
	projectJSON     bool

	assigneeProject string
	assigneeJSON    bool

	mappingsJSON bool
)

var rootCmd = &cobra.Command{
	Use:          "praxisctl",
	Short:        "Correlate tracked stories with the commits that implement them",
	SilenceUsage: true,
}

var trackCmd = &cobra.Command{
	Use:   "track <story-key>",
	Short: "Track one story's commits and classify its freshness",
	Long: `Track one story: resolve the assignee's commit identity, locate the
repository and branch the work lives on, match attributable commits, and
classify how fresh the work is.

Examples:
  praxisctl track KAN-25
  praxisctl track KAN-25 --repo acme/kan-app
  praxisctl track KAN-25 --validate --comment`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

var projectCmd = &cobra.Command{
	Use:   "project <project-key>",
	Short: "Track every story in a project and print the rollup",
	Args:  cobra.ExactArgs(1),
	RunE:  runProject,
}

var assigneeCmd = &cobra.Command{
	Use:   "assignee <email>",
	Short: "Track the stories assigned to one person",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssignee,
}

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Inspect and edit learned project-to-repository mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored mappings",
	Args:  cobra.NoArgs,
	RunE:  runMappingsList,
}

var mappingsSetCmd = &cobra.Command{
	Use:   "set <project-key> <owner/name>",
	Short: "Pin a project to a repository",
	Args:  cobra.ExactArgs(2),
	RunE:  runMappingsSet,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: $PRAXIS_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable structured logging")

	trackCmd.Flags().StringVar(&trackIdentity, "identity", "", "Override the resolved commit author identity")
	trackCmd.Flags().StringVar(&trackRepo, "repo", "", "Repository as owner/name; confirms and persists the mapping")
	trackCmd.Flags().BoolVar(&trackValidate, "validate", false, "Ask the validation collaborator for a verdict")
	trackCmd.Flags().BoolVar(&trackComment, "comment", false, "Post the report back onto the story")
	trackCmd.Flags().BoolVar(&trackJSON, "json", false, "Output as JSON")

	projectCmd.Flags().BoolVar(&projectValidate, "validate", false, "Validate each story with at least one matched commit")
	projectCmd.Flags().BoolVar(&projectJSON, "json", false, "Output as JSON")

	assigneeCmd.Flags().StringVar(&assigneeProject, "project", "", "Narrow the search to one project key")
	assigneeCmd.Flags().BoolVar(&assigneeJSON, "json", false, "Output as JSON")

	mappingsListCmd.Flags().BoolVar(&mappingsJSON, "json", false, "Output as JSON")

	mappingsCmd.AddCommand(mappingsListCmd, mappingsSetCmd)
	rootCmd.AddCommand(trackCmd, projectCmd, assigneeCmd, mappingsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired collaborators a command needs
type app struct {
	engine *tracker.Tracker
	jira   *jira.Client
	store  *repomap.Store
	logger *zap.Logger
}

func newLogger() (*zap.Logger, error) {
	if verboseFlag {
		return zap.NewProduction()
	}
	return zap.NewNop(), nil
}

func buildApp() (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jiraClient, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIToken, logger)
	if err != nil {
		return nil, err
	}

	var host tracker.RepoHost
	var logins tracker.LoginSource
	if cfg.GitHub.Token != "" {
		githubClient := github.NewClient(cfg.GitHub.Token, logger)
		host = githubClient
		logins = githubClient
	} else {
		host = github.NewLocalHost(cfg.GitHub.WorkspaceDir, logger)
	}

	store := repomap.NewStore(cfg.Tracker.MappingPath, logger)

	var validator validate.Validator
	if cfg.OpenAI.APIKey != "" {
		validator = validate.NewAIValidator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	}

	resolver := tracker.NewResolver(cfg.Tracker.UserMapping, logins, logger)
	locator := tracker.NewLocator(store, host, tracker.LocatorConfig{
		DefaultRepository: cfg.Tracker.DefaultRepository,
		DefaultBranch:     cfg.Tracker.DefaultBranch,
		ScanRepoLimit:     cfg.Tracker.ScanRepoLimit,
		ScanCommitLimit:   cfg.Tracker.ScanCommitLimit,
	}, logger)
	matcher := tracker.NewMatcher(host, cfg.Tracker.SinceMargin(), logger)
	engine := tracker.NewTracker(jiraClient, host, resolver, locator, matcher, validator, tracker.Config{
		Workers:        cfg.Tracker.Workers,
		RequestTimeout: cfg.Tracker.RequestTimeout(),
	}, logger)

	return &app{engine: engine, jira: jiraClient, store: store, logger: logger}, nil
}

// buildStore wires just the mapping store, so mapping commands work
// without tracker or host credentials
func buildStore() (*repomap.Store, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return repomap.NewStore(cfg.Tracker.MappingPath, logger), nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.logger.Sync()

	result := app.engine.TrackStory(cmd.Context(), args[0], tracker.TrackOptions{
		Identity:   trackIdentity,
		Repository: trackRepo,
		Validate:   trackValidate || trackComment,
	})

	if trackComment {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "not posting report: %s\n", result.Error.Message)
		} else if err := app.jira.AddComment(cmd.Context(), result.StoryKey, tracker.FormatReportComment(result)); err != nil {
			return fmt.Errorf("failed to post report comment: %w", err)
		} else {
			fmt.Printf("report posted to %s\n", result.StoryKey)
		}
	}

	if trackJSON {
		return printJSON(result)
	}
	fmt.Print(tracker.FormatStoryReport(result))
	return nil
}

func runProject(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.logger.Sync()

	report, err := app.engine.TrackProject(cmd.Context(), args[0], tracker.TrackOptions{
		Validate: projectValidate,
	})
	if err != nil {
		return err
	}

	if projectJSON {
		return printJSON(report)
	}
	fmt.Print(tracker.FormatProjectReport(report))
	return nil
}

func runAssignee(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.logger.Sync()

	report, err := app.engine.TrackAssignee(cmd.Context(), args[0], assigneeProject, tracker.TrackOptions{})
	if err != nil {
		return err
	}

	if assigneeJSON {
		return printJSON(report)
	}
	fmt.Print(tracker.FormatAssigneeReport(report))
	return nil
}

func runMappingsList(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	mappings, err := store.All()
	if err != nil {
		return err
	}

	if mappingsJSON {
		return printJSON(mappings)
	}

	keys := make([]string, 0, len(mappings))
	for key := range mappings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tREPOSITORY")
	for _, key := range keys {
		fmt.Fprintf(w, "%s\t%s\n", key, mappings[key])
	}
	return w.Flush()
}

func runMappingsSet(cmd *cobra.Command, args []string) error {
	store, err := buildStore()
	if err != nil {
		return err
	}

	projectKey, repository := args[0], args[1]
	if _, err := types.ParseRepository(repository); err != nil {
		return err
	}
	if err := store.Save(projectKey, repository); err != nil {
		return err
	}

	fmt.Printf("%s -> %s\n", projectKey, repository)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
