package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"medscan-desktop/internal/services/poll"
	"medscan-desktop/internal/services/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, `medscan - lab report analysis client

Usage:
  medscan login <token>                 store a backend-issued session token
  medscan resolve                       show the startup session resolution
  medscan submit <file>                 submit a report and print the job ID
  medscan watch <file>                  submit a report and wait for the result
  medscan reports                       list analyzed reports
  medscan report <id>                   show one report with parameters
  medscan ask <id> <question...>        ask the assistant about a report
  medscan share <id> <email> [relation] share a report with a family member
  medscan shares                        list family-sharing grants
  medscan revoke <share-id>             revoke a family-sharing grant
  medscan audit                         show recent local audit events
  medscan signout                       sign out and clear local state`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	app := NewApp()
	app.startup(context.Background())
	defer app.shutdown()

	ctx := context.Background()

	switch os.Args[1] {
	case "login":
		if len(os.Args) != 3 {
			usage()
		}
		if err := app.SignIn(os.Args[2]); err != nil {
			log.Fatalf("Sign-in failed: %v", err)
		}
		fmt.Println("Signed in")

	case "resolve":
		res, err := app.Resolve()
		if err != nil {
			log.Fatalf("Session resolution failed: %v", err)
		}
		fmt.Printf("%s -> screen %q", res.Outcome, res.Screen)
		if res.Tab != "" {
			fmt.Printf(" (tab %q)", res.Tab)
		}
		fmt.Println()

	case "submit":
		if len(os.Args) != 3 {
			usage()
		}
		requireSession(app)
		jobID, err := app.SubmitAndTrack(os.Args[2], nil)
		if err != nil {
			log.Fatalf("Submission failed: %v", err)
		}
		fmt.Printf("Submitted. Job ID: %s\n", jobID)
		// Leave the loop running until terminal so the local record is updated
		waitForJob(app, jobID)

	case "watch":
		if len(os.Args) != 3 {
			usage()
		}
		requireSession(app)
		watch(app, os.Args[2])

	case "reports":
		requireSession(app)
		summaries, err := app.reportsService.List(ctx)
		if err != nil {
			log.Fatalf("Failed to list reports: %v", err)
		}
		for _, s := range summaries {
			fmt.Printf("%-36s  %-10s  %s\n", s.ID, s.Status, s.Title)
		}

	case "report":
		if len(os.Args) != 3 {
			usage()
		}
		requireSession(app)
		report, err := app.reportsService.Get(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Failed to fetch report: %v", err)
		}
		fmt.Printf("%s\n\n", report.Title)
		for _, p := range report.Parameters {
			flag := ""
			if p.Flag != "" && p.Flag != "normal" {
				flag = "  [" + strings.ToUpper(p.Flag) + "]"
			}
			fmt.Printf("  %-24s %s %s%s\n", p.Name, p.Value, p.Unit, flag)
		}
		if report.Synthesis != "" {
			fmt.Printf("\n%s\n", report.Synthesis)
		}

	case "ask":
		if len(os.Args) < 4 {
			usage()
		}
		requireSession(app)
		answer, err := app.reportsService.Ask(ctx, os.Args[2], strings.Join(os.Args[3:], " "))
		if err != nil {
			log.Fatalf("Assistant request failed: %v", err)
		}
		fmt.Println(answer)

	case "share":
		if len(os.Args) < 4 || len(os.Args) > 5 {
			usage()
		}
		requireSession(app)
		relation := ""
		if len(os.Args) == 5 {
			relation = os.Args[4]
		}
		share, err := app.reportsService.Share(ctx, os.Args[2], os.Args[3], relation)
		if err != nil {
			log.Fatalf("Failed to share report: %v", err)
		}
		fmt.Printf("Shared with %s (%s). Share ID: %s\n", share.MemberEmail, share.Relation, share.ID)

	case "shares":
		requireSession(app)
		shares, err := app.reportsService.ListShares(ctx)
		if err != nil {
			log.Fatalf("Failed to list shares: %v", err)
		}
		for _, s := range shares {
			fmt.Printf("%-36s  report %-36s  %s (%s)\n", s.ID, s.ReportID, s.MemberEmail, s.Relation)
		}

	case "revoke":
		if len(os.Args) != 3 {
			usage()
		}
		requireSession(app)
		if err := app.reportsService.Revoke(ctx, os.Args[2]); err != nil {
			log.Fatalf("Failed to revoke share: %v", err)
		}
		fmt.Println("Revoked")

	case "audit":
		entries, err := app.auditService.List("", 50)
		if err != nil {
			log.Fatalf("Failed to list audit events: %v", err)
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-18s", e.CreatedAt.Format(time.RFC3339), e.EventType)
			if e.JobID != "" {
				line += "  job " + e.JobID
			}
			if e.Detail != "" {
				line += "  " + e.Detail
			}
			fmt.Println(line)
		}

	case "signout":
		if err := app.SignOut(); err != nil {
			log.Fatalf("Sign-out failed: %v", err)
		}
		fmt.Println("Signed out")

	default:
		usage()
	}
}

// requireSession resolves the stored session and exits when there is none
func requireSession(app *App) {
	res, err := app.Resolve()
	if err != nil {
		log.Fatalf("Session resolution failed: %v", err)
	}
	if res.Outcome == session.OutcomeUnauthenticated {
		log.Fatal("Not signed in. Run: medscan login <token>")
	}
}

// watch submits a file and renders progress until the loop terminates
func watch(app *App, path string) {
	done := make(chan poll.State, 1)

	jobID, err := app.SubmitAndTrack(path, func(jobID string, st poll.State) {
		done <- st
	})
	if err != nil {
		log.Fatalf("Submission failed: %v", err)
	}
	fmt.Printf("Submitted. Job ID: %s\n", jobID)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case st := <-done:
			switch st.Phase {
			case poll.PhaseCompleted:
				fmt.Println("\rAnalysis complete.                ")
			case poll.PhaseFailed:
				fmt.Printf("\rAnalysis failed: %s\n", st.LastError)
			case poll.PhaseTimedOut:
				fmt.Println("\rAnalysis timed out. Try again later.")
			}
			return
		case <-ticker.C:
			if st, err := app.TrackingState(jobID); err == nil {
				fmt.Printf("\rAnalyzing... %3d%%", st.Progress)
			}
		}
	}
}

// waitForJob blocks until the job's poll loop has terminated
func waitForJob(app *App, jobID string) {
	for {
		if _, err := app.TrackingState(jobID); err != nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
