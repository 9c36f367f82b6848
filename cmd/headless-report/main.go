package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Garsondee/Squad-Tactics/internal/app"
	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/missions"
)

// A run that ends inconclusive with at least this fraction of both forces
// standing is reported as a stalemate.
const stalemateSurvival = 0.6

type runStats struct {
	runID    uuid.UUID
	runIndex int
	seed     int64
	ticksRun int

	outcome game.MissionOutcome

	firstWaveTick      int
	firstKillTick      int
	firstExplosionTick int
	firstRetreatTick   int
	firstDisbandTick   int

	kills       int
	shots       int
	heals       int
	explosions  int
	retreats    int
	rallies     int
	unreachable int
	disbands    int
	waves       int
	casualties  map[string]struct{}

	windowSummary *game.WindowReport
	grades        []game.SquadGrade
}

func main() {
	var runs int
	var ticks int
	var seedBase int64
	var seedStep int64
	var mission string
	var configFile string
	var campaign string

	flag.IntVar(&runs, "runs", 5, "number of headless simulation runs")
	flag.IntVar(&ticks, "ticks", 36000, "tick limit per run")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&mission, "mission", "citadel_crisis", "mission ID or definition file")
	flag.StringVar(&configFile, "config", "", "config file (JSON or YAML)")
	flag.StringVar(&campaign, "campaign", "", `campaign id to chain runs through, or "new"`)
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if ticks <= 0 {
		fmt.Println("error: -ticks must be > 0")
		return
	}

	a, err := app.Bootstrap(configFile, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	def, err := missions.Find(mission, a.Config.App.MissionsDir)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("loading mission")
	}

	fmt.Printf("=== Headless Mission Report ===\n")
	fmt.Printf("mission=%s runs=%d ticks=%d seed_base=%d seed_step=%d\n\n", def.MissionID, runs, ticks, seedBase, seedStep)

	ctx := context.Background()
	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep

		campaignID, records, err := a.Campaign(ctx, campaign, def.MissionID)
		if err != nil {
			a.Log.Fatal().Err(err).Msg("loading campaign")
		}
		if campaignID != uuid.Nil {
			// Later runs continue the same campaign.
			campaign = campaignID.String()
		}

		stats, eng, err := runMission(def, i+1, seed, ticks, a.EngineOptions(seed, nil, records)...)
		if err != nil {
			a.Log.Error().Err(err).Int("run", i+1).Msg("run failed")
			continue
		}
		all = append(all, stats)
		printRun(stats)

		if err := a.SaveOutcome(ctx, campaignID, eng); err != nil {
			a.Log.Error().Err(err).Msg("saving carryover")
		}
	}

	printAggregate(all)
	if campaign != "" && campaign != app.NewCampaign {
		fmt.Printf("\ncampaign: %s\n", campaign)
	}
}

// runMission plays def to completion or the tick limit. opts come first so
// the run's own seed, sim log and observer take precedence.
func runMission(def *game.MissionDef, runIndex int, seed int64, ticks int, opts ...game.Option) (runStats, *game.Engine, error) {
	sl := game.NewSimLog(false)
	book := game.NewPerfBook()
	reporter := game.NewSimReporter(0, false)
	collectEvery := 60

	opts = append(opts,
		game.WithSeed(seed),
		game.WithSimLog(sl),
		game.WithObserver(func(s *game.Snapshot) {
			book.Observe(s)
			reporter.Tally(s)
			if s.Tick%collectEvery == 0 {
				reporter.Collect(s)
			}
		}),
	)
	eng, err := game.NewEngine(def, opts...)
	if err != nil {
		return runStats{}, nil, err
	}
	// One report per simulated second.
	collectEvery = max(eng.Tuning().TickRate, 1)
	n, err := eng.RunUntilDone(ticks)
	if err != nil && eng.Halted() == nil {
		return runStats{}, eng, err
	}
	// Close the window on the final state.
	reporter.Collect(eng.Snapshot())

	entries := sl.Entries()
	casualties := map[string]struct{}{}
	for _, e := range entries {
		if e.Category == "combat" && e.Key == "kill" {
			casualties[e.Actor] = struct{}{}
		}
	}

	return runStats{
		runID:              uuid.New(),
		runIndex:           runIndex,
		seed:               seed,
		ticksRun:           n,
		outcome:            game.DetermineOutcome(eng),
		firstWaveTick:      firstTick(entries, "wave", "fired", ""),
		firstKillTick:      firstTick(entries, "combat", "kill", ""),
		firstExplosionTick: firstTick(entries, "physics", "explosion", ""),
		firstRetreatTick:   firstTick(entries, "morale", "retreat", ""),
		firstDisbandTick:   firstTick(entries, "squad", "disband", ""),
		kills:              sl.CountCategory("combat", "kill"),
		shots:              sl.CountCategory("combat", "fire"),
		heals:              sl.CountCategory("combat", "heal"),
		explosions:         sl.CountCategory("physics", "explosion"),
		retreats:           sl.CountCategory("morale", "retreat"),
		rallies:            sl.CountCategory("morale", "rally"),
		unreachable:        sl.CountCategory("order", "unreachable"),
		disbands:           sl.CountCategory("squad", "disband"),
		waves:              sl.CountCategory("wave", "fired"),
		casualties:         casualties,
		windowSummary:      reporter.WindowSummary(),
		grades:             book.Grades(),
	}, eng, nil
}

func firstTick(entries []game.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

// teamSurvivalCounts counts squads per side and how many of them are still
// standing.
func teamSurvivalCounts(grades []game.SquadGrade) (playerTotal, enemyTotal, playerSurvivors, enemySurvivors int) {
	for _, g := range grades {
		switch g.Side {
		case game.SidePlayer.String():
			playerTotal++
			if g.Survived {
				playerSurvivors++
			}
		case game.SideEnemy.String():
			enemyTotal++
			if g.Survived {
				enemySurvivors++
			}
		}
	}
	return playerTotal, enemyTotal, playerSurvivors, enemySurvivors
}

// detectStalemate reports whether a run stopped on the tick limit with both
// forces largely intact.
func detectStalemate(rs runStats) (bool, string) {
	mo := rs.outcome
	if mo.Outcome != game.OutcomeInconclusive {
		return false, "resolved:" + mo.Description
	}
	if mo.PlayerTotal == 0 || mo.EnemyTotal == 0 {
		return false, "one_sided"
	}
	playerSurv := float64(mo.PlayerSurvivors) / float64(mo.PlayerTotal)
	enemySurv := float64(mo.EnemySurvivors) / float64(mo.EnemyTotal)
	if playerSurv < stalemateSurvival || enemySurv < stalemateSurvival {
		return false, fmt.Sprintf("decisive_attrition player=%.2f enemy=%.2f", playerSurv, enemySurv)
	}

	reasons := []string{"high_mutual_survival"}
	if rs.disbands == 0 {
		reasons = append(reasons, "no_squad_lost")
	}
	if rs.unreachable > 0 {
		reasons = append(reasons, "orders_stalled")
	}
	if rs.retreats > rs.rallies {
		reasons = append(reasons, "unrallied_retreats")
	}
	return true, strings.Join(reasons, ",")
}

func printRun(rs runStats) {
	fmt.Printf("--- Run %d (seed=%d id=%s) ---\n", rs.runIndex, rs.seed, rs.runID)
	fmt.Print(rs.outcome.Format())
	fmt.Printf("phase_markers: first_wave=%d first_kill=%d first_explosion=%d first_retreat=%d first_disband=%d\n",
		rs.firstWaveTick, rs.firstKillTick, rs.firstExplosionTick, rs.firstRetreatTick, rs.firstDisbandTick)
	fmt.Printf("combat_events: kill=%d fire=%d heal=%d explosion=%d waves=%d\n",
		rs.kills, rs.shots, rs.heals, rs.explosions, rs.waves)
	fmt.Printf("morale_events: retreat=%d rally=%d disband=%d unreachable=%d\n",
		rs.retreats, rs.rallies, rs.disbands, rs.unreachable)
	playerTotal, enemyTotal, playerSurvivors, enemySurvivors := teamSurvivalCounts(rs.grades)
	fmt.Printf("squads_standing: player=%d/%d enemy=%d/%d\n", playerSurvivors, playerTotal, enemySurvivors, enemyTotal)
	if stalemate, reason := detectStalemate(rs); stalemate {
		fmt.Printf("stalemate: %s\n", reason)
	}
	fmt.Printf("casualty_labels: %s\n", joinSet(rs.casualties))
	if rs.windowSummary != nil {
		fmt.Println()
		fmt.Print(rs.windowSummary.Format())
	}
	fmt.Print(game.FormatGrades(rs.grades))
	fmt.Println()
}

func printAggregate(all []runStats) {
	totalKills := 0
	totalShots := 0
	totalHeals := 0
	totalExplosions := 0
	totalRetreats := 0
	totalRallies := 0
	totalUnreachable := 0
	totalDisbands := 0
	totalTicks := 0
	stalemates := 0

	outcomes := map[string]int{}
	killTicks := make([]int, 0, len(all))
	explosionTicks := make([]int, 0, len(all))
	retreatTicks := make([]int, 0, len(all))
	disbandTicks := make([]int, 0, len(all))
	casualtiesGlobal := map[string]struct{}{}

	// Aggregate per-squad scores across runs.
	type squadAgg struct {
		scoreSum float64
		count    int
		survived int
		good     map[string]int
		bad      map[string]int
	}
	squadAggs := map[string]*squadAgg{}

	for _, rs := range all {
		totalKills += rs.kills
		totalShots += rs.shots
		totalHeals += rs.heals
		totalExplosions += rs.explosions
		totalRetreats += rs.retreats
		totalRallies += rs.rallies
		totalUnreachable += rs.unreachable
		totalDisbands += rs.disbands
		totalTicks += rs.ticksRun
		outcomes[rs.outcome.Description]++
		if stalemate, _ := detectStalemate(rs); stalemate {
			stalemates++
		}
		if rs.firstKillTick >= 0 {
			killTicks = append(killTicks, rs.firstKillTick)
		}
		if rs.firstExplosionTick >= 0 {
			explosionTicks = append(explosionTicks, rs.firstExplosionTick)
		}
		if rs.firstRetreatTick >= 0 {
			retreatTicks = append(retreatTicks, rs.firstRetreatTick)
		}
		if rs.firstDisbandTick >= 0 {
			disbandTicks = append(disbandTicks, rs.firstDisbandTick)
		}
		for label := range rs.casualties {
			casualtiesGlobal[label] = struct{}{}
		}
		for _, g := range rs.grades {
			key := g.Side + "/" + g.Name
			ag, ok := squadAggs[key]
			if !ok {
				ag = &squadAgg{good: map[string]int{}, bad: map[string]int{}}
				squadAggs[key] = ag
			}
			ag.scoreSum += g.Score
			ag.count++
			if g.Survived {
				ag.survived++
			}
			for _, t := range g.GoodTraits {
				ag.good[t]++
			}
			for _, t := range g.BadTraits {
				ag.bad[t]++
			}
		}
	}

	fmt.Println("=== Aggregate AAR Inputs ===")
	fmt.Printf("runs=%d avg_ticks=%.1f stalemates=%d\n", len(all), avg(totalTicks, len(all)), stalemates)
	fmt.Printf("outcomes: %s\n", countsString(outcomes))
	fmt.Printf("avg_combat_per_run: kill=%.1f fire=%.1f heal=%.1f explosion=%.1f\n",
		avg(totalKills, len(all)), avg(totalShots, len(all)), avg(totalHeals, len(all)), avg(totalExplosions, len(all)))
	fmt.Printf("avg_morale_per_run: retreat=%.1f rally=%.1f disband=%.1f unreachable=%.1f\n",
		avg(totalRetreats, len(all)), avg(totalRallies, len(all)), avg(totalDisbands, len(all)), avg(totalUnreachable, len(all)))
	fmt.Printf("phase_marker_avg_ticks: first_kill=%s first_explosion=%s first_retreat=%s first_disband=%s\n",
		avgTickString(killTicks), avgTickString(explosionTicks), avgTickString(retreatTicks), avgTickString(disbandTicks))
	fmt.Printf("unique_casualty_labels=%d\n", len(casualtiesGlobal))

	fmt.Println("\n=== Aggregate Squad Performance ===")
	type squadScore struct {
		key      string
		avgScore float64
		survRate float64
		topGood  string
		topBad   string
	}
	var rows []squadScore
	for key, ag := range squadAggs {
		avgS := 0.0
		if ag.count > 0 {
			avgS = ag.scoreSum / float64(ag.count)
		}
		survR := 0.0
		if ag.count > 0 {
			survR = float64(ag.survived) / float64(ag.count) * 100
		}
		rows = append(rows, squadScore{key, avgS, survR, topTrait(ag.good), topTrait(ag.bad)})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].key < rows[j].key
	})
	for _, r := range rows {
		grade := game.PerfLetterGrade(r.avgScore)
		fmt.Printf("  %-24s %s (avg=%.1f)  survival=%.0f%%", r.key, grade, r.avgScore, r.survRate)
		if r.topGood != "" {
			fmt.Printf("  good=%s", r.topGood)
		}
		if r.topBad != "" {
			fmt.Printf("  bad=%s", r.topBad)
		}
		fmt.Println()
	}

	if len(all) > 0 {
		fmt.Println("\n--- Side Summary (across all runs) ---")
		fmt.Print(game.FormatGradesSummary(collectAllGrades(all)))
	}
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func topTrait(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	best := ""
	bestN := 0
	for k, v := range counts {
		if v > bestN || (v == bestN && k < best) {
			best = k
			bestN = v
		}
	}
	return fmt.Sprintf("%s(%d)", best, bestN)
}

func countsString(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

func collectAllGrades(all []runStats) []game.SquadGrade {
	var out []game.SquadGrade
	for _, rs := range all {
		out = append(out, rs.grades...)
	}
	return out
}

func joinSet(s map[string]struct{}) string {
	if len(s) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s))
	for k := range s {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
