// Command contribute walks a donor through a contribution from the terminal: pick
// units and a payment method, enter details, pay in the browser, and wait for the
// payment to be confirmed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/contributions-backend/internal/checkoutflow"
	"github.com/angelmondragon/contributions-backend/pkg/config"
	"github.com/angelmondragon/contributions-backend/pkg/enums"
	"github.com/angelmondragon/contributions-backend/pkg/fxrate"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	projectID := flag.String("project-id", "", "project to contribute to (uuid)")
	projectTitle := flag.String("project-title", "", "project title shown in the summary")
	unitName := flag.String("unit-name", "unit", "name of one contribution unit")
	unitPrice := flag.String("unit-price", "", "price of one unit in GHS")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "contribute",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stderr,
		Format:      "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := checkoutflow.NewClient(cfg.APIURL, cfg.Token)
	if err != nil {
		logg.Error(ctx, "failed to create api client", err)
		os.Exit(1)
	}
	store, err := checkoutflow.NewFileStore(cfg.StateDir)
	if err != nil {
		logg.Error(ctx, "failed to open pending payment store", err)
		os.Exit(1)
	}

	if ref, state, err := checkoutflow.Resume(ctx, client, store); err != nil {
		logg.Error(logg.WithReference(ctx, ref), "failed to confirm previous payment", err)
	} else if ref != "" {
		fmt.Printf("Previous payment %s: %s\n", ref, describeOutcome(state))
	}

	if *projectID == "" && *unitPrice == "" {
		return
	}
	project, err := parseProject(*projectID, *projectTitle, *unitName, *unitPrice)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	estimator, err := fxrate.NewEstimator(fxrate.Config{
		Fallback: decimal.NewFromFloat(cfg.FX.FallbackRate),
		Min:      decimal.NewFromFloat(cfg.FX.MinRate),
		Max:      decimal.NewFromFloat(cfg.FX.MaxRate),
		Timeout:  cfg.FX.Timeout,
	}, logg, fxrate.DefaultProviders(&http.Client{Timeout: cfg.FX.Timeout})...)
	if err != nil {
		logg.Error(ctx, "failed to create fx estimator", err)
		os.Exit(1)
	}

	opener := newBrowserOpener(os.Stdout)
	redirect, err := checkoutflow.NewRedirectPresenter(stdoutNavigator{out: os.Stdout})
	if err != nil {
		logg.Error(ctx, "failed to create redirect presenter", err)
		os.Exit(1)
	}
	presenter, err := checkoutflow.NewPopupPresenter(opener, checkoutflow.Screen{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight}, redirect)
	if err != nil {
		logg.Error(ctx, "failed to create popup presenter", err)
		os.Exit(1)
	}

	wizard, err := checkoutflow.NewWizard(checkoutflow.WizardParams{
		Project:      project,
		Backend:      client,
		Presenter:    presenter,
		Store:        store,
		FX:           estimator,
		Logger:       logg,
		CallbackURL:  cfg.CallbackURL,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create wizard", err)
		os.Exit(1)
	}
	defer wizard.Cancel()

	session := &session{
		wizard: wizard,
		prompt: newPrompter(os.Stdin, os.Stdout),
		opener: opener,
		out:    os.Stdout,
	}
	if err := session.run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		logg.Error(ctx, "contribution failed", err)
		os.Exit(1)
	}
}

func parseProject(id, title, unitName, unitPrice string) (checkoutflow.Project, error) {
	projectID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return checkoutflow.Project{}, fmt.Errorf("-project-id: %w", err)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(unitPrice))
	if err != nil {
		return checkoutflow.Project{}, fmt.Errorf("-unit-price: %w", err)
	}
	return checkoutflow.Project{ID: projectID, Title: title, UnitName: unitName, UnitPrice: price}, nil
}

func describeOutcome(state checkoutflow.PollState) string {
	switch state {
	case checkoutflow.PollResolvedSuccess:
		return "confirmed"
	case checkoutflow.PollResolvedFailure:
		return "not confirmed"
	}
	return string(state)
}

type session struct {
	wizard *checkoutflow.Wizard
	prompt *prompter
	opener *browserOpener
	out    io.Writer
}

func (s *session) run(ctx context.Context) error {
	if err := s.collect(); err != nil {
		return err
	}
	for {
		ok, err := s.review(ctx)
		if err != nil || !ok {
			return err
		}
		if err := s.wizard.Submit(ctx); err != nil {
			fmt.Fprintf(s.out, "Could not start payment: %v\n", err)
		} else if err := s.await(ctx); err != nil {
			return err
		}

		switch s.wizard.Step() {
		case checkoutflow.StepSuccess:
			fmt.Fprintf(s.out, "Thank you! Payment %s confirmed.\n", s.wizard.Reference())
			return nil
		case checkoutflow.StepProcessing:
			return nil
		}

		fmt.Fprintf(s.out, "Payment was not confirmed: %v\n", s.wizard.LastError())
		again, err := s.prompt.confirm("Try again")
		if err != nil || !again {
			return err
		}
		if err := s.wizard.TryAgain(); err != nil {
			return err
		}
	}
}

// collect fills the Amount, PaymentMethod and Details steps.
func (s *session) collect() error {
	for s.wizard.Step() != checkoutflow.StepReview {
		var err error
		switch s.wizard.Step() {
		case checkoutflow.StepAmount:
			var units int
			if units, err = s.prompt.askInt("Units", 1); err == nil {
				err = s.wizard.SetUnits(units)
			}
		case checkoutflow.StepPaymentMethod:
			var raw string
			if raw, err = s.prompt.ask("Payment method (MOMO, CARD, BANK)", string(enums.PaymentMethodMobileMoney)); err == nil {
				var method enums.PaymentMethod
				if method, err = enums.ParsePaymentMethod(raw); err == nil {
					err = s.wizard.SelectMethod(method)
				}
			}
		case checkoutflow.StepDetails:
			err = s.details()
		}
		if errors.Is(err, io.EOF) {
			return err
		}
		if err == nil {
			err = s.wizard.Next()
		}
		if err != nil {
			fmt.Fprintf(s.out, "  %v\n", err)
		}
	}
	return nil
}

func (s *session) details() error {
	current := s.wizard.Donor()
	var d checkoutflow.Donor
	var err error
	if d.FirstName, err = s.prompt.ask("First name", current.FirstName); err != nil {
		return err
	}
	if d.LastName, err = s.prompt.ask("Last name", current.LastName); err != nil {
		return err
	}
	if d.Email, err = s.prompt.ask("Email (optional)", current.Email); err != nil {
		return err
	}
	if d.Phone, err = s.prompt.ask("Phone (optional)", current.Phone); err != nil {
		return err
	}
	return s.wizard.SetDonor(d)
}

func (s *session) review(ctx context.Context) (bool, error) {
	total := s.wizard.Total()
	fmt.Fprintf(s.out, "\nTotal: GHS %s", total.StringFixed(2))
	estimateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	usd, source := s.wizard.USDEstimate(estimateCtx)
	cancel()
	if source != "" {
		fmt.Fprintf(s.out, " (about USD %s)", usd.StringFixed(2))
	}
	fmt.Fprintln(s.out)
	return s.prompt.confirm("Pay now")
}

// await blocks until the poller settles. Any input line means the donor closed the
// checkout window.
func (s *session) await(ctx context.Context) error {
	if s.wizard.Step() != checkoutflow.StepProcessing {
		return nil
	}
	type waited struct {
		step checkoutflow.Step
		err  error
	}
	done := make(chan waited, 1)
	go func() {
		step, err := s.wizard.Wait(ctx)
		done <- waited{step: step, err: err}
	}()

	fmt.Fprintln(s.out, "Waiting for payment confirmation. Press Enter once you have closed the checkout window.")
	lines := s.prompt.lines
	for {
		select {
		case res := <-done:
			return res.err
		case _, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if win := s.opener.current(); win != nil {
				_ = win.Close()
			}
		}
	}
}
