package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/publora/publora/config"
	"github.com/publora/publora/errors"
	"github.com/publora/publora/logger"
	"github.com/publora/publora/platform"
	"github.com/publora/publora/post"
	"github.com/publora/publora/scheduler"
)

// ScheduleCmd groups the scheduled-post operations
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Create, inspect, and run scheduled posts",
	Long: `schedule — Manage scheduled cross-platform posts

Examples:
  publora schedule add video.mp4 --platforms youtube,tiktok --title "Launch"
  publora schedule add a.mp4 b.mp4 c.mp4 --platforms youtube   # auto-spaced batch
  publora schedule list --status pending
  publora schedule remove 4f7c…
  publora schedule status
  publora schedule run --interval 60
  publora schedule run --once      # single cycle, for cron`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var (
	addTimeFlag      string
	addPlatformsFlag string
	addTitleFlag     string
	addCaptionFlag   string
	addHashtagsFlag  string
	addSpacingFlag   int

	listStatusFlag   string
	listPlatformFlag string
	listLimitFlag    int
	listOffsetFlag   int

	rescheduleTimeFlag string

	runIntervalFlag int
	runOnceFlag     bool
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add <artifact>...",
	Short: "Schedule one or more artifacts for publishing",
	Long: `Schedule artifacts for cross-platform publishing.

With --time, the single artifact is scheduled at that exact instant.
Without --time, a free slot is auto-allocated per platform; multiple
artifacts are spaced out so they never collide with each other.

Accepted time formats: RFC 3339 (2026-09-01T18:00:00Z) or "2026-09-01 18:00"
(local time).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScheduleAdd,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled posts",
	RunE:  runScheduleList,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Cancel a pending post",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

var scheduleRescheduleCmd = &cobra.Command{
	Use:   "reschedule <id>",
	Short: "Move a pending post to a new publish time",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleReschedule,
}

var scheduleNowCmd = &cobra.Command{
	Use:   "now <id>",
	Short: "Make a pending post due immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleNow,
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aggregate counts plus upcoming and recent posts",
	RunE:  runScheduleStatus,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the publishing loop",
	Long: `Run the publishing loop in the foreground.

Each cycle fetches due posts, uploads to every destination platform, and
applies the retry policy. With --once, exactly one cycle runs and the
command returns, for cron-style invocation.`,
	RunE: runScheduleRun,
}

func init() {
	scheduleAddCmd.Flags().StringVar(&addTimeFlag, "time", "", "Explicit publish time (single artifact only)")
	scheduleAddCmd.Flags().StringVar(&addPlatformsFlag, "platforms", "", "Comma-separated destination platforms (required)")
	scheduleAddCmd.Flags().StringVar(&addTitleFlag, "title", "", "Post title")
	scheduleAddCmd.Flags().StringVar(&addCaptionFlag, "caption", "", "Post caption")
	scheduleAddCmd.Flags().StringVar(&addHashtagsFlag, "hashtags", "", "Hashtag string")
	scheduleAddCmd.Flags().IntVar(&addSpacingFlag, "spacing", 0, "Slot spacing in hours (default from config)")
	scheduleAddCmd.MarkFlagRequired("platforms")

	scheduleListCmd.Flags().StringVar(&listStatusFlag, "status", "", "Filter by status")
	scheduleListCmd.Flags().StringVar(&listPlatformFlag, "platform", "", "Filter by platform substring")
	scheduleListCmd.Flags().IntVar(&listLimitFlag, "limit", 20, "Maximum posts to show")
	scheduleListCmd.Flags().IntVar(&listOffsetFlag, "offset", 0, "Posts to skip")

	scheduleRescheduleCmd.Flags().StringVar(&rescheduleTimeFlag, "time", "", "New publish time (required)")
	scheduleRescheduleCmd.MarkFlagRequired("time")

	scheduleRunCmd.Flags().IntVar(&runIntervalFlag, "interval", 0, "Poll interval in seconds (default from config)")
	scheduleRunCmd.Flags().BoolVar(&runOnceFlag, "once", false, "Run exactly one cycle and exit")

	ScheduleCmd.AddCommand(scheduleAddCmd)
	ScheduleCmd.AddCommand(scheduleListCmd)
	ScheduleCmd.AddCommand(scheduleRemoveCmd)
	ScheduleCmd.AddCommand(scheduleRescheduleCmd)
	ScheduleCmd.AddCommand(scheduleNowCmd)
	ScheduleCmd.AddCommand(scheduleStatusCmd)
	ScheduleCmd.AddCommand(scheduleRunCmd)
}

// parsePublishTime accepts RFC 3339 or "YYYY-MM-DD HH:MM" (local time)
func parsePublishTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, errors.Newf("unrecognized time %q (want RFC 3339 or \"YYYY-MM-DD HH:MM\")", s)
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	platforms := post.SplitPlatforms(addPlatformsFlag)
	if len(platforms) == 0 {
		return errors.New("at least one platform is required")
	}

	for _, artifact := range args {
		if _, err := os.Stat(artifact); err != nil {
			return errors.Newf("artifact not found: %s", artifact)
		}
	}

	// Warn about missing credentials up front; the uploader will still be
	// the one to fail at dispatch time if nothing changes
	creds := platform.NewFileCredentialStore(cfg.Platforms)
	for _, name := range platforms {
		if !creds.IsAuthenticated(name) {
			pterm.Printf("%s platform %s has no credentials configured\n",
				pterm.Yellow("warning:"), name)
		}
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := post.NewStore(database)
	allocator := post.NewSlotAllocator(store)

	spacing := addSpacingFlag
	if spacing <= 0 {
		spacing = cfg.Slots.SpacingHours
	}

	var times []time.Time
	switch {
	case addTimeFlag != "":
		if len(args) > 1 {
			return errors.New("--time only applies to a single artifact; omit it to auto-space a batch")
		}
		t, err := parsePublishTime(addTimeFlag)
		if err != nil {
			return err
		}
		times = []time.Time{t}
	case len(args) == 1:
		t, err := allocator.ScheduleTime(platforms, spacing)
		if err != nil {
			return errors.Wrap(err, "failed to allocate publish slot")
		}
		times = []time.Time{t}
	default:
		times, err = allocator.SpaceBatch(platforms, len(args), spacing)
		if err != nil {
			return errors.Wrap(err, "failed to allocate publish slots")
		}
	}

	meta := post.Metadata{
		Title:    addTitleFlag,
		Caption:  addCaptionFlag,
		Hashtags: addHashtagsFlag,
	}

	for i, artifact := range args {
		p, err := post.New(artifact, meta, platforms, times[i])
		if err != nil {
			return err
		}
		if err := store.Create(p); err != nil {
			return err
		}
		pterm.Printf("%s %s %s %s\n",
			pterm.LightGreen("✓ Scheduled:"),
			pterm.White(artifact),
			pterm.Gray("at"),
			pterm.Cyan(p.ScheduledAt.Local().Format("2006-01-02 15:04")))
		pterm.Printf("  %s %s\n", pterm.Gray("id:"), p.ID)
	}

	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	opts := post.ListOptions{
		PlatformContains: listPlatformFlag,
		Limit:            listLimitFlag,
		Offset:           listOffsetFlag,
	}
	if listStatusFlag != "" {
		if !post.IsValidStatus(listStatusFlag) {
			return errors.Newf("invalid status %q", listStatusFlag)
		}
		status := post.Status(listStatusFlag)
		opts.Status = &status
	}

	posts, err := post.NewStore(database).List(opts)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		pterm.Println(pterm.Gray("No matching posts"))
		return nil
	}

	renderPostTable(posts)
	return nil
}

func renderPostTable(posts []*post.ScheduledPost) {
	data := pterm.TableData{
		{"ID", "STATUS", "SCHEDULED", "PLATFORMS", "RETRIES", "ERROR"},
	}
	for _, p := range posts {
		errMsg := p.ErrorMessage
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		data = append(data, []string{
			shortID(p.ID),
			string(p.Status),
			p.ScheduledAt.Local().Format("2006-01-02 15:04"),
			p.PlatformsString(),
			fmt.Sprintf("%d", p.RetryCount),
			errMsg,
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := post.NewStore(database).Cancel(args[0]); err != nil {
		return err
	}

	pterm.Printf("%s %s\n", pterm.LightGreen("✓ Cancelled:"), args[0])
	return nil
}

func runScheduleReschedule(cmd *cobra.Command, args []string) error {
	newTime, err := parsePublishTime(rescheduleTimeFlag)
	if err != nil {
		return err
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := post.NewStore(database).Reschedule(args[0], newTime); err != nil {
		return err
	}

	pterm.Printf("%s %s %s %s\n",
		pterm.LightGreen("✓ Rescheduled:"), args[0],
		pterm.Gray("to"), newTime.Local().Format("2006-01-02 15:04"))
	return nil
}

func runScheduleNow(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := post.NewStore(database).Reschedule(args[0], time.Now()); err != nil {
		return err
	}

	pterm.Printf("%s %s\n", pterm.LightGreen("✓ Due now:"), args[0])
	return nil
}

func runScheduleStatus(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := post.NewStore(database)

	counts, err := store.CountByStatus()
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("Post counts")
	total := 0
	for _, status := range []post.Status{
		post.StatusPending, post.StatusProcessing, post.StatusCompleted,
		post.StatusFailed, post.StatusCancelled,
	} {
		pterm.Printf("  %-12s %d\n", status, counts[status])
		total += counts[status]
	}
	pterm.Printf("  %-12s %d\n", "total", total)

	upcoming, err := store.Upcoming(5)
	if err != nil {
		return err
	}
	pterm.DefaultSection.Println("Next up")
	if len(upcoming) == 0 {
		pterm.Println(pterm.Gray("  Nothing scheduled"))
	} else {
		renderPostTable(upcoming)
	}

	recent, err := store.Recent(5)
	if err != nil {
		return err
	}
	pterm.DefaultSection.Println("Recently processed")
	if len(recent) == 0 {
		pterm.Println(pterm.Gray("  Nothing processed yet"))
	} else {
		renderPostTable(recent)
	}

	return nil
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	loopCfg := scheduler.DefaultLoopConfig()
	loopCfg.Interval = time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
	loopCfg.GracePeriod = time.Duration(cfg.Scheduler.GracePeriodMinutes) * time.Minute
	loopCfg.MaxRetries = cfg.Scheduler.MaxRetries
	loopCfg.UploadTimeout = time.Duration(cfg.Scheduler.UploadTimeoutSeconds) * time.Second
	if runIntervalFlag > 0 {
		loopCfg.Interval = time.Duration(runIntervalFlag) * time.Second
	}

	registry := platform.NewRegistry()
	for name, platformCfg := range cfg.Platforms {
		registry.Register(name, platform.NewWebhookUploader(name, platformCfg, logger.Logger))
	}
	if len(cfg.Platforms) == 0 {
		logger.Warnw("No platforms configured; due posts will fail dispatch")
	}

	store := post.NewStore(database)
	executor := scheduler.NewExecutor(registry, loopCfg.UploadTimeout, logger.Logger)
	loop := scheduler.NewLoop(store, executor, loopCfg, logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOnceFlag {
		return loop.RunOnce(ctx)
	}

	pterm.Printf("Publishing loop running (interval %v); Ctrl+C to stop\n", loopCfg.Interval)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
