package reminder

import (
	"fmt"
	"slices"
)

// Stage is one named step of a notification chain.
type Stage string

const (
	StageVideoReminder       Stage = "video_reminder"
	StageCheckingIn          Stage = "checking_in"
	StageFinalReminder       Stage = "final_reminder"
	StageTestimonial1        Stage = "testimonial_1"
	StageTestimonial2        Stage = "testimonial_2"
	StageTestimonial3        Stage = "testimonial_3"
	StageAppointmentReminder Stage = "appointment_reminder"
)

// Chain names the linear sequence a stage belongs to.
type Chain string

const (
	ChainVideo       Chain = "video"
	ChainTestimonial Chain = "testimonial"
	ChainAppointment Chain = "appointment"
)

type stageSpec struct {
	chain Chain
	next  Stage
	sms   bool
	// conversionTriggered stages are sent because the recipient converted,
	// so the conversion check must not suppress them.
	conversionTriggered bool
}

// stageOrder is the enumeration order.
var stageOrder = []Stage{
	StageVideoReminder,
	StageCheckingIn,
	StageFinalReminder,
	StageTestimonial1,
	StageTestimonial2,
	StageTestimonial3,
	StageAppointmentReminder,
}

// stages is the chain table.
var stages = map[Stage]stageSpec{
	StageVideoReminder:       {chain: ChainVideo, next: StageCheckingIn},
	StageCheckingIn:          {chain: ChainVideo, next: StageFinalReminder},
	StageFinalReminder:       {chain: ChainVideo, sms: true},
	StageTestimonial1:        {chain: ChainTestimonial, next: StageTestimonial2},
	StageTestimonial2:        {chain: ChainTestimonial, next: StageTestimonial3},
	StageTestimonial3:        {chain: ChainTestimonial},
	StageAppointmentReminder: {chain: ChainAppointment, sms: true, conversionTriggered: true},
}

func init() {
	if err := ValidateChains(); err != nil {
		panic(err)
	}
}

// Stages returns every known stage in enumeration order.
func Stages() []Stage {
	return slices.Clone(stageOrder)
}

// ParseStage converts a string to a known Stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
	}
	return st, nil
}

func (s Stage) String() string {
	return string(s)
}

// Valid checks the stage against the fixed enumeration.
func (s Stage) Valid() bool {
	_, ok := stages[s]
	return ok
}

// Chain returns the chain the stage belongs to.
func (s Stage) Chain() Chain {
	return stages[s].chain
}

// NextStage returns the stage that follows s in its chain.
// The second result is false for terminal stages.
func NextStage(s Stage) (Stage, bool) {
	def, ok := stages[s]
	if !ok || def.next == "" {
		return "", false
	}
	return def.next, true
}

// SupportsSMS reports whether the stage is also delivered over SMS
// when the recipient has a phone number.
func (s Stage) SupportsSMS() bool {
	return stages[s].sms
}

// ChainSensitive reports whether a conversion suppresses the stage.
// Every stage except the conversion-triggered ones is chain-sensitive.
func (s Stage) ChainSensitive() bool {
	def, ok := stages[s]
	return ok && !def.conversionTriggered
}

// ValidateChains checks that every chain is strictly linear: each next stage
// exists, stays in the same chain, has a single predecessor and no cycle is formed.
func ValidateChains() error {
	predecessors := make(map[Stage]Stage, len(stages))
	for _, s := range stageOrder {
		def := stages[s]
		if def.next == "" {
			continue
		}
		nextDef, ok := stages[def.next]
		if !ok {
			return fmt.Errorf("%w: %s points to unknown stage %s", ErrInvalidChain, s, def.next)
		}
		if nextDef.chain != def.chain {
			return fmt.Errorf("%w: %s and %s belong to different chains", ErrInvalidChain, s, def.next)
		}
		if prev, dup := predecessors[def.next]; dup {
			return fmt.Errorf("%w: %s follows both %s and %s", ErrInvalidChain, def.next, prev, s)
		}
		predecessors[def.next] = s
	}

	for _, s := range stageOrder {
		seen := map[Stage]bool{s: true}
		for cur, ok := NextStage(s); ok; cur, ok = NextStage(cur) {
			if seen[cur] {
				return fmt.Errorf("%w: cycle through %s", ErrInvalidChain, cur)
			}
			seen[cur] = true
		}
	}

	return nil
}
