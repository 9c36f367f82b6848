package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"

	"github.com/Garsondee/Squad-Tactics/internal/app"
	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/termview"
	"github.com/Garsondee/Squad-Tactics/missions"
)

func main() {
	configFile := flag.String("config", "", "config file (JSON or YAML)")
	mission := flag.String("mission", "citadel_crisis", "mission ID or definition file")
	seed := flag.Int64("seed", 1, "combat RNG seed")
	campaign := flag.String("campaign", "", `campaign id to continue, or "new"`)
	verbose := flag.Bool("verbose", false, "log per-shot combat events")
	flag.Parse()

	// The terminal belongs to tcell; only the log file gets output.
	a, err := app.Bootstrap(*configFile, io.Discard)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	def, err := missions.Find(*mission, a.Config.App.MissionsDir)
	if err != nil {
		log.Fatalf("loading mission: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	campaignID, records, err := a.Campaign(ctx, *campaign, def.MissionID)
	if err != nil {
		log.Fatalf("loading campaign: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal(err)
	}
	if err := screen.Init(); err != nil {
		log.Fatal(err)
	}

	sl := game.NewSimLog(*verbose)
	v := termview.New(screen, sl, a.Log)
	opts := append(a.EngineOptions(*seed, sl, records), v.Observer())
	eng, err := game.NewEngine(def, opts...)
	if err != nil {
		screen.Fini()
		log.Fatalf("starting mission: %v", err)
	}
	v.Attach(eng)

	runErr := v.Run(ctx)
	screen.Fini()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		a.Log.Error().Err(runErr).Msg("terminal view")
	}

	fmt.Print(v.Debrief())
	if err := a.SaveOutcome(context.Background(), campaignID, eng); err != nil {
		fmt.Fprintf(os.Stderr, "saving carryover: %v\n", err)
	}
	if campaignID != uuid.Nil {
		fmt.Printf("campaign: %s\n", campaignID)
	}
}
