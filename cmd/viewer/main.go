package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/Garsondee/Squad-Tactics/internal/app"
	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/viewer"
	"github.com/Garsondee/Squad-Tactics/missions"
)

func main() {
	configFile := flag.String("config", "", "config file (JSON or YAML)")
	mission := flag.String("mission", "citadel_crisis", "mission ID or definition file")
	seed := flag.Int64("seed", 1, "combat RNG seed")
	campaign := flag.String("campaign", "", `campaign id to continue, or "new"`)
	verbose := flag.Bool("verbose", false, "log per-shot combat events")
	flag.Parse()

	a, err := app.Bootstrap(*configFile, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	def, err := missions.Find(*mission, a.Config.App.MissionsDir)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("loading mission")
	}
	ctx := context.Background()
	campaignID, records, err := a.Campaign(ctx, *campaign, def.MissionID)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("loading campaign")
	}

	sl := game.NewSimLog(*verbose)
	v := viewer.New(sl, a.Log)
	opts := append(a.EngineOptions(*seed, sl, records), v.Observer())
	eng, err := game.NewEngine(def, opts...)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("starting mission")
	}
	v.Attach(eng)

	ebiten.SetWindowTitle("Squad Tactics: " + def.Name)
	ebiten.SetWindowSize(viewer.DefaultWidth, viewer.DefaultHeight)
	if err := ebiten.RunGame(v); err != nil {
		a.Log.Error().Err(err).Msg("viewer")
	}

	fmt.Print(v.Debrief())
	if err := a.SaveOutcome(ctx, campaignID, eng); err != nil {
		a.Log.Error().Err(err).Msg("saving carryover")
	}
	if campaignID != uuid.Nil {
		fmt.Printf("campaign: %s\n", campaignID)
	}
}
