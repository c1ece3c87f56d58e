package reminder

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProfileVerification uses short delays so a whole chain can be exercised in minutes.
	ProfileVerification = "verification"
	// ProfileProduction uses the real campaign spacing.
	ProfileProduction = "production"
)

// DelayPolicy maps stages to the delay between scheduling and the due time.
type DelayPolicy struct {
	Name    string
	Delays  map[Stage]time.Duration
	Default time.Duration
}

// DelayFor returns the delay configured for the stage, or the policy default.
func (p DelayPolicy) DelayFor(stage Stage) time.Duration {
	if d, ok := p.Delays[stage]; ok {
		return d
	}
	return p.Default
}

// VerificationProfile spaces every stage five minutes apart.
func VerificationProfile() DelayPolicy {
	return DelayPolicy{
		Name:    ProfileVerification,
		Default: 5 * time.Minute,
	}
}

// ProductionProfile returns the campaign spacing used with real leads.
func ProductionProfile() DelayPolicy {
	return DelayPolicy{
		Name: ProfileProduction,
		Delays: map[Stage]time.Duration{
			StageVideoReminder:       24 * time.Hour,
			StageCheckingIn:          48 * time.Hour,
			StageFinalReminder:       72 * time.Hour,
			StageTestimonial1:        24 * time.Hour,
			StageTestimonial2:        72 * time.Hour,
			StageTestimonial3:        7 * 24 * time.Hour,
			StageAppointmentReminder: 0,
		},
		Default: 24 * time.Hour,
	}
}

var (
	profilesMu sync.RWMutex
	profiles   = map[string]DelayPolicy{
		ProfileVerification: VerificationProfile(),
		ProfileProduction:   ProductionProfile(),
	}
)

// ProfileByName returns a registered delay profile.
func ProfileByName(name string) (DelayPolicy, error) {
	profilesMu.RLock()
	defer profilesMu.RUnlock()

	p, ok := profiles[name]
	if !ok {
		return DelayPolicy{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	p.Delays = maps.Clone(p.Delays)
	return p, nil
}

// RegisterProfile adds or replaces a named delay profile.
func RegisterProfile(p DelayPolicy) {
	profilesMu.Lock()
	defer profilesMu.Unlock()
	p.Delays = maps.Clone(p.Delays)
	profiles[p.Name] = p
}

// ProfileNames lists registered profiles in alphabetical order.
func ProfileNames() []string {
	profilesMu.RLock()
	defer profilesMu.RUnlock()

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type profileDocument struct {
	Profiles map[string]struct {
		Default string            `yaml:"default"`
		Stages  map[string]string `yaml:"stages"`
	} `yaml:"profiles"`
}

// LoadProfiles parses a YAML document of delay profiles:
//
//	profiles:
//	  staging:
//	    default: 1h
//	    stages:
//	      video_reminder: 30m
//	      checking_in: 2h
//
// Durations use time.ParseDuration syntax.
func LoadProfiles(r io.Reader) ([]DelayPolicy, error) {
	var doc profileDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidProfile, err)
	}

	names := make([]string, 0, len(doc.Profiles))
	for name := range doc.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DelayPolicy, 0, len(names))
	for _, name := range names {
		raw := doc.Profiles[name]
		p := DelayPolicy{Name: name, Delays: make(map[Stage]time.Duration, len(raw.Stages))}

		if raw.Default != "" {
			d, err := parseDelay(raw.Default)
			if err != nil {
				return nil, fmt.Errorf("%w: profile %s default: %w", ErrInvalidProfile, name, err)
			}
			p.Default = d
		}

		for s, v := range raw.Stages {
			stage, err := ParseStage(s)
			if err != nil {
				return nil, fmt.Errorf("%w: profile %s: %w", ErrInvalidProfile, name, err)
			}
			d, err := parseDelay(v)
			if err != nil {
				return nil, fmt.Errorf("%w: profile %s stage %s: %w", ErrInvalidProfile, name, s, err)
			}
			p.Delays[stage] = d
		}

		out = append(out, p)
	}

	return out, nil
}

func parseDelay(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay %s", s)
	}
	return d, nil
}
