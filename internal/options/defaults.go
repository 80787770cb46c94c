package options

import (
	"strconv"

	"go.uber.org/zap"
)

// Option names shared with the session.
const (
	DebugLogFile     = "Debug Log File"
	Threads          = "Threads"
	Hash             = "Hash"
	ClearHash        = "Clear Hash"
	Ponder           = "Ponder"
	MultiPV          = "MultiPV"
	SkillLevel       = "Skill Level"
	MoveOverhead     = "Move Overhead"
	Chess960         = "UCI_Chess960"
	LimitStrength    = "UCI_LimitStrength"
	Elo              = "UCI_Elo"
	ShowWDL          = "UCI_ShowWDL"
	TablebaseURL     = "TablebaseURL"
	SyzygyProbeLimit = "SyzygyProbeLimit"
	Syzygy50MoveRule = "Syzygy50MoveRule"
)

const (
	MinElo = 1320
	MaxElo = 3190
)

// Defaults describes the engine's option set. threads and hashMB override
// the built-in defaults when positive.
func Defaults(threads, hashMB int) []Option {
	if threads <= 0 {
		threads = 1
	}
	if hashMB <= 0 {
		hashMB = 16
	}
	return []Option{
		{Name: DebugLogFile, Kind: String},
		{Name: Threads, Kind: Spin, Default: strconv.Itoa(threads), Min: 1, Max: 1024, Persist: true},
		{Name: Hash, Kind: Spin, Default: strconv.Itoa(hashMB), Min: 1, Max: 33554432, Persist: true},
		{Name: ClearHash, Kind: Button},
		{Name: Ponder, Kind: Check, Default: "false"},
		{Name: MultiPV, Kind: Spin, Default: "1", Min: 1, Max: 256, Persist: true},
		{Name: SkillLevel, Kind: Spin, Default: "20", Min: 0, Max: 20, Persist: true},
		{Name: MoveOverhead, Kind: Spin, Default: "10", Min: 0, Max: 5000, Persist: true},
		{Name: Chess960, Kind: Check, Default: "false"},
		{Name: LimitStrength, Kind: Check, Default: "false", Persist: true},
		{Name: Elo, Kind: Spin, Default: strconv.Itoa(MinElo), Min: MinElo, Max: MaxElo, Persist: true},
		{Name: ShowWDL, Kind: Check, Default: "false", Persist: true},
		{Name: TablebaseURL, Kind: String, Persist: true},
		{Name: SyzygyProbeLimit, Kind: Spin, Default: "7", Min: 0, Max: 7, Persist: true},
		{Name: Syzygy50MoveRule, Kind: Check, Default: "true", Persist: true},
	}
}

// NewDefault returns a store holding Defaults.
func NewDefault(persist Persister, logger *zap.Logger, threads, hashMB int) *Store {
	s := New(persist, logger)
	for _, o := range Defaults(threads, hashMB) {
		s.Add(o)
	}
	return s
}

// EloToSkill maps a UCI_Elo value linearly onto skill levels 0..20.
func EloToSkill(elo int) int {
	elo = min(max(elo, MinElo), MaxElo)
	return (elo - MinElo) * 20 / (MaxElo - MinElo)
}

// EffectiveSkill is the skill level the engine should use.
func (s *Store) EffectiveSkill() int {
	if s.Get(LimitStrength).Bool() {
		return EloToSkill(s.Get(Elo).Int())
	}
	return s.Get(SkillLevel).Int()
}
