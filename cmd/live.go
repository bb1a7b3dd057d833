package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/camera"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run an attendance session from the terminal",
	Long: `Run one attendance session with a local camera.

Keys (followed by Enter):
  c        capture a burst and recognize it
  Enter/n  confirm the recognition
  s        stop and submit attendance
  r        retry a failed submission
  q        quit without submitting`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().String("course", "", "Course code (required)")
	liveCmd.Flags().String("snapshot-url", "", "IP camera snapshot URL (overrides CAMERA_SNAPSHOT_URL)")
	liveCmd.Flags().String("frames-dir", "", "Directory of frames to read instead of a camera (overrides CAMERA_FRAMES_DIR)")
	liveCmd.Flags().Int("frames", 0, "Frames per burst (overrides BURST_FRAMES)")
	liveCmd.Flags().Bool("no-progress", false, "Disable the coverage progress bar")
	_ = liveCmd.MarkFlagRequired("course")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if u := mustGetString(cmd, "snapshot-url"); u != "" {
		cfg.Camera.SnapshotURL = u
		cfg.Camera.FramesDir = ""
	}
	if d := mustGetString(cmd, "frames-dir"); d != "" {
		cfg.Camera.FramesDir = d
		cfg.Camera.SnapshotURL = ""
	}
	if n := mustGetInt(cmd, "frames"); n > 0 {
		cfg.Burst.Frames = n
	}

	source, err := cameraSource(cfg)
	if err != nil {
		return err
	}
	deps, err := sessionDeps(cfg)
	if err != nil {
		return err
	}

	session := attendance.NewSession(attendance.Dependencies{
		Roster:     deps.Roster,
		Recognizer: deps.Recognizer,
		Persister:  deps.Persister,
		Device:     camera.New(source, cameraOptions(cfg)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	courseID := mustGetString(cmd, "course")
	fmt.Printf("Loading roster for %s...\n", courseID)
	if err := session.Start(ctx, courseID); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	showBar := !mustGetBool(cmd, "no-progress") && isatty.IsTerminal(os.Stdout.Fd())
	return newConsole(session, os.Stdin, os.Stdout, showBar).run(ctx)
}

var errInputClosed = errors.New("input closed before attendance was submitted")

// console drives a started session from line-based operator input.
type console struct {
	session *attendance.Session
	in      *bufio.Scanner
	out     io.Writer
	bar     *progressbar.ProgressBar
}

func newConsole(session *attendance.Session, in io.Reader, out io.Writer, showBar bool) *console {
	c := &console{
		session: session,
		in:      bufio.NewScanner(in),
		out:     out,
	}
	if showBar {
		c.bar = progressbar.NewOptions(session.Snapshot().RosterSize,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Present"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("students"),
			progressbar.OptionFullWidth(),
		)
	}
	return c
}

func (c *console) printf(format string, a ...any) {
	if c.bar != nil {
		_ = c.bar.Clear()
	}
	fmt.Fprintf(c.out, format, a...)
}

func (c *console) run(ctx context.Context) error {
	snap := c.session.Snapshot()
	c.printf("Session started for %s: %d students\n", snap.CourseID, snap.RosterSize)
	c.prompt()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	readErr := make(chan error, 1)
	go c.readLines(lines, readErr, done)

	for {
		select {
		case <-ctx.Done():
			c.printf("\nInterrupted\n")
			return c.abandon(ctx.Err())
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return c.abandon(err)
				}
				return c.abandon(errInputClosed)
			}
			if err := ctx.Err(); err != nil {
				return c.abandon(err)
			}

			finished, err := c.handle(ctx, strings.ToLower(strings.TrimSpace(line)))
			if finished {
				return err
			}
			c.prompt()
		}
	}
}

// readLines feeds operator input to run until the input ends or run returns.
func (c *console) readLines(lines chan<- string, readErr chan<- error, done <-chan struct{}) {
	defer close(lines)
	for c.in.Scan() {
		select {
		case lines <- c.in.Text():
		case <-done:
			return
		}
	}
	readErr <- c.in.Err()
}

// handle executes one command and reports whether the session is over.
func (c *console) handle(ctx context.Context, cmd string) (bool, error) {
	state := c.session.State()

	switch {
	case cmd == "c" && state == attendance.StateActive:
		c.capture(ctx)
	case (cmd == "" || cmd == "n") && state == attendance.StateAwaitingConfirmation:
		c.confirm()
	case cmd == "s" && state.Live():
		return c.stop(ctx)
	case cmd == "r" && state == attendance.StateFinalizing:
		return c.finalize(ctx)
	case cmd == "q":
		return true, c.abandon(nil)
	case cmd == "":
	default:
		c.printf("Command %q is not available while %s\n", cmd, state)
	}
	return false, nil
}

func (c *console) prompt() {
	switch c.session.State() {
	case attendance.StateActive:
		c.printf("[c] capture  [s] stop  [q] quit > ")
	case attendance.StateAwaitingConfirmation:
		c.printf("[Enter] confirm  [s] stop > ")
	case attendance.StateFinalizing:
		c.printf("[r] retry submission  [q] quit without submitting > ")
	}
}

func (c *console) capture(ctx context.Context) {
	outcome, err := c.session.BeginCapture(ctx)
	if err != nil {
		c.printf("Capture failed: %v\n", err)
		return
	}

	res := outcome.Result
	switch {
	case !res.Recognized:
		c.printf("No match (%d/%d frames with a face)\n", res.Detections, res.TotalFrames)
	case !outcome.InRoster:
		c.printf("Recognized %s (%s), not enrolled in this course\n", outcome.StudentName, outcome.StudentID)
	case outcome.AlreadyPresent:
		c.printf("Recognized %s (%s), already present\n", outcome.StudentName, outcome.StudentID)
	default:
		c.printf("Recognized %s (%s), %d/%d frames\n", outcome.StudentName, outcome.StudentID, res.Detections, res.TotalFrames)
	}
}

func (c *console) confirm() {
	conf, err := c.session.ConfirmNext()
	if err != nil {
		c.printf("Confirm failed: %v\n", err)
		return
	}

	switch conf.Kind {
	case attendance.ConfirmAdded:
		c.printf("✓ %s marked present\n", conf.StudentName)
	case attendance.ConfirmAlreadyPresent:
		c.printf("%s was already present\n", conf.StudentName)
	case attendance.ConfirmUnknown:
		c.printf("Warning: %v\n", conf.Err())
	case attendance.ConfirmNoMatch:
		c.printf("Nothing recorded\n")
	}
	if c.bar != nil {
		_ = c.bar.Set(conf.PresentCount)
	}
}

func (c *console) stop(ctx context.Context) (bool, error) {
	record, err := c.session.Stop()
	if err != nil {
		c.printf("Stop failed: %v\n", err)
		return false, nil
	}
	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}

	snap := c.session.Snapshot()
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, renderStudents(fmt.Sprintf("Present (%d)", len(snap.Present)), snap.Present))
	fmt.Fprintln(c.out, renderStudents(fmt.Sprintf("Absent (%d)", len(snap.Absent)), snap.Absent))
	if len(record.UnmatchedIDs) > 0 {
		fmt.Fprintf(c.out, "Recognized but not enrolled: %s\n", joinIDs(record.UnmatchedIDs))
	}

	return c.finalize(ctx)
}

func (c *console) finalize(ctx context.Context) (bool, error) {
	c.printf("Submitting attendance...\n")
	receipt, err := c.session.Finalize(ctx)
	if err != nil {
		c.printf("Submission failed: %v\n", err)
		return false, nil
	}

	c.printf("Attendance saved")
	if receipt.RecordID != "" {
		c.printf(" (record %s)", receipt.RecordID)
	}
	c.printf("\n")
	if receipt.EmailSent {
		c.printf("Report emailed to %s\n", receipt.EmailRecipient)
	}
	return true, nil
}

// abandon releases the camera without submitting. cause is returned as is.
func (c *console) abandon(cause error) error {
	state := c.session.State()
	if state.Live() {
		if _, err := c.session.Stop(); err != nil {
			return errors.Join(cause, err)
		}
		state = c.session.State()
	}
	if state == attendance.StateFinalizing {
		c.printf("Session ended, attendance for %s was NOT submitted\n", c.session.CourseID())
	}
	return cause
}

func joinIDs(ids []attendance.CanonicalID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
