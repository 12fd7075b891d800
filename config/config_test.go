package config

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mitmedialab/split-value-voting/types"
)

func validParams() ElectionParameters {
	return ElectionParameters{
		ElectionID: "2026-general",
		BallotStyle: types.BallotStyle{
			{RaceID: "president", Choices: []string{"Alice", "Bob", "**********"}},
			{RaceID: "treasurer", Choices: []string{"Carol", "Dave"}},
		},
		NVoters: 100,
		NReps:   4,
		NFail:   1,
		NLeak:   1,
	}
}

func TestValidateAcceptsWellFormedParams(t *testing.T) {
	c := qt.New(t)
	c.Assert(validParams().Validate(), qt.IsNil)
}

func TestWithDefaultsFillsBallotIDLen(t *testing.T) {
	c := qt.New(t)
	p := validParams().WithDefaults()
	c.Assert(p.BallotIDLen, qt.Equals, DefaultBallotIDLen)
	c.Assert(p.JSONIndent, qt.Equals, DefaultJSONIndent)
}

func TestValidateRejectsEmptyElectionID(t *testing.T) {
	c := qt.New(t)
	p := validParams()
	p.ElectionID = ""
	c.Assert(p.Validate(), qt.ErrorMatches, ".*config invalid.*")
}

func TestValidateRejectsDuplicateRaceID(t *testing.T) {
	c := qt.New(t)
	p := validParams()
	p.BallotStyle = append(p.BallotStyle, types.RaceSpec{RaceID: "president", Choices: []string{"Eve"}})
	c.Assert(p.Validate(), qt.ErrorMatches, ".*config invalid.*")
}

func TestValidateRejectsOddNReps(t *testing.T) {
	c := qt.New(t)
	p := validParams()
	p.NReps = 5
	c.Assert(p.Validate(), qt.ErrorMatches, ".*config invalid.*")
}

func TestValidateRejectsNRepsAbove26(t *testing.T) {
	c := qt.New(t)
	p := validParams()
	p.NReps = 28
	c.Assert(p.Validate(), qt.ErrorMatches, ".*config invalid.*")
}

func TestValidateRejectsZeroVoters(t *testing.T) {
	c := qt.New(t)
	p := validParams()
	p.NVoters = 0
	c.Assert(p.Validate(), qt.ErrorMatches, ".*config invalid.*")
}

func TestValidateRejectsDoubleWriteIn(t *testing.T) {
	c := qt.New(t)
	p := validParams()
	p.BallotStyle[0].Choices = append(p.BallotStyle[0].Choices, "*****")
	c.Assert(p.Validate(), qt.ErrorMatches, ".*config invalid.*")
}
