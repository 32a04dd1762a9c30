// Package main is a command-line front end to the journey tracker. Each run
// loads one appointment, recovers any open leg from the API, performs at most
// one action at the position given by -lat/-lng, and prints the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/client"
	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/geo"
	"github.com/pkordes/visit-tracker/internal/identity"
	"github.com/pkordes/visit-tracker/internal/journey"
)

const usage = `usage: tracker [flags] <status|start|arrive|end|next|return|complete-return>`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printer shows notices on stderr.
type printer struct{ w io.Writer }

func (p printer) Notify(n journey.Notice) {
	fmt.Fprintf(p.w, "%s: %s\n", n.Title, n.Description)
	if n.SignIn {
		fmt.Fprintln(p.w, "sign in again and pass the new token with -session")
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tracker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		apiURL   = fs.String("api", "http://localhost:8080", "API base URL")
		session  = fs.String("session", os.Getenv("VISIT_SESSION"), "session token")
		cookie   = fs.String("cookie", "__session", "session cookie name")
		userID   = fs.String("user", os.Getenv("VISIT_USER_ID"), "fallback user id")
		email    = fs.String("email", "", "fallback user email")
		apptFlag = fs.String("appointment", "", "appointment id")
		nextFlag = fs.String("to", "", "next appointment id (for next)")
		lat      = fs.Float64("lat", 0, "current latitude")
		lng      = fs.Float64("lng", 0, "current longitude")
		dest     = fs.String("dest", string(domain.LocationOffice), "return destination: office or home")
		destName = fs.String("dest-name", "", "return destination name")
		verbose  = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}
	action := fs.Arg(0)

	apptID, err := uuid.Parse(*apptFlag)
	if err != nil {
		return fmt.Errorf("-appointment: %w", err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	hc, err := httpClient(*apiURL, *cookie, *session)
	if err != nil {
		return err
	}
	api := client.New(*apiURL, hc)

	flagIdentity := identity.SourceFunc(func(context.Context) (domain.Identity, error) {
		return domain.Identity{UserID: *userID, Email: *email}, nil
	})
	who := identity.NewResolver(api, log, flagIdentity).Resolve(ctx)

	fixes := geo.NewCapturer(geo.StaticLocator{Latitude: *lat, Longitude: *lng})
	t := journey.NewTracker(api, api, fixes, printer{w: stderr}, log)
	if err := t.Load(ctx, apptID); err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	switch action {
	case "status":
	case "start":
		err = t.StartDrive(ctx, who)
	case "arrive":
		var miles float64
		if miles, err = t.MarkArrived(ctx, who); err == nil {
			fmt.Fprintf(stdout, "arrived: %.1f mi\n", miles)
		}
	case "end":
		err = t.EndVisit(ctx)
	case "next":
		var next uuid.UUID
		if next, err = uuid.Parse(*nextFlag); err != nil {
			return fmt.Errorf("-to: %w", err)
		}
		err = t.DriveToNext(ctx, who, next)
	case "return":
		err = t.ReturnToOffice(ctx, who)
	case "complete-return":
		var miles float64
		if miles, err = t.CompleteReturn(ctx, who, domain.LocationType(*dest), *destName); err == nil {
			fmt.Fprintf(stdout, "returned: %.1f mi\n", miles)
		}
	default:
		return errors.New(usage)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	printSnapshot(stdout, t.Snapshot())
	return nil
}

// httpClient returns a client whose jar carries the session cookie, if any.
func httpClient(apiURL, cookieName, token string) (*http.Client, error) {
	hc := &http.Client{Timeout: client.DefaultTimeout}
	if token == "" {
		return hc, nil
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("-api: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(u, []*http.Cookie{{Name: cookieName, Value: token}})
	hc.Jar = jar
	return hc, nil
}

func printSnapshot(w io.Writer, s journey.Snapshot) {
	fmt.Fprintf(w, "appointment %s (%s)\n", s.Appointment.ID, s.Appointment.Status)
	fmt.Fprintf(w, "state:       %s\n", s.State)
	fmt.Fprintf(w, "next action: %s\n", s.Action)
	if s.LegID != nil {
		fmt.Fprintf(w, "open leg:    %s\n", *s.LegID)
	}
	if s.JourneyID != nil {
		fmt.Fprintf(w, "journey:     %s\n", *s.JourneyID)
	}
}
