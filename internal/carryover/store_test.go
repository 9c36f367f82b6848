package carryover

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "carryover.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLatest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.NewCampaign(ctx, "ridge")
	require.NoError(t, err)

	recs, err := s.Latest(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, recs)

	first := []game.CarryoverRecord{
		{SquadName: "Bows", Kind: "archer", LossRatio: 0.1, Kills: 4, Veteran: true},
		{SquadName: "Boom", Kind: "grenadier", LossRatio: 0.5, Kills: 2},
	}
	seq, err := s.Save(ctx, id, "citadel_crisis", first)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	second := []game.CarryoverRecord{
		{SquadName: "Bows", Kind: "archer", LossRatio: 0.2, Kills: 9, Veteran: true},
	}
	seq, err = s.Save(ctx, id, "purge_planet", second)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	recs, err = s.Latest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second, recs)
}

func TestStore_WipedOutForceCarriesNothing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.NewCampaign(ctx, "grim")
	require.NoError(t, err)

	_, err = s.Save(ctx, id, "m1", []game.CarryoverRecord{{SquadName: "Bows", Kills: 1}})
	require.NoError(t, err)
	seq, err := s.Save(ctx, id, "m2", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	recs, err := s.Latest(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_CampaignsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, err := s.NewCampaign(ctx, "a")
	require.NoError(t, err)
	b, err := s.NewCampaign(ctx, "b")
	require.NoError(t, err)

	_, err = s.Save(ctx, a, "m1", []game.CarryoverRecord{{SquadName: "Alpha"}})
	require.NoError(t, err)

	recs, err := s.Latest(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, recs)

	all, err := s.Campaigns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestStore_UnknownCampaign(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Save(ctx, uuid.New(), "m1", nil)
	require.ErrorIs(t, err, ErrUnknownCampaign)
	_, err = s.Latest(ctx, uuid.New())
	require.ErrorIs(t, err, ErrUnknownCampaign)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mongo", "", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestStore_FeedsNextMission(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.NewCampaign(ctx, "chain")
	require.NoError(t, err)

	def := &game.MissionDef{
		MissionID:    "chain_1",
		Name:         "Chain",
		Objectives:   []game.ObjectiveDef{{ID: "hold", Type: "survive_time", Time: 30}},
		PlayerSquads: []game.SquadDef{{Name: "Bows", Type: "archer", Size: 3, Position: []float64{20, 20}}},
	}
	e, err := game.NewEngine(def)
	require.NoError(t, err)
	_, err = s.Save(ctx, id, def.MissionID, e.Carryover())
	require.NoError(t, err)

	recs, err := s.Latest(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Veteran, "an untouched squad is veteran")

	next := &game.MissionDef{
		MissionID:    "chain_2",
		Name:         "Chain 2",
		Objectives:   []game.ObjectiveDef{{ID: "hold", Type: "survive_time", Time: 30}},
		PlayerSquads: []game.SquadDef{{Name: "Bows", Type: "archer", Size: 3, Position: []float64{20, 20}}},
	}
	e2, err := game.NewEngine(next, game.WithCarryover(recs))
	require.NoError(t, err)
	sv := e2.Snapshot().Squads[0]
	assert.True(t, sv.Veteran)
	assert.Greater(t, sv.Morale, 1.0)
}
