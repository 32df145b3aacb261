// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package synthesis

import (
	"fmt"
	"time"
)

// Tier maps passage counts up to MaxPassages to a batch size and pause.
// MaxPassages 0 means unbounded and is only valid on the last tier.
type Tier struct {
	MaxPassages int           `yaml:"max_passages"`
	BatchSize   int           `yaml:"batch_size"`
	Pause       time.Duration `yaml:"pause"`
}

// Config controls batching. It is loaded once and never mutated.
type Config struct {
	// SmallBatchThreshold is the largest passage count sent in a single call.
	SmallBatchThreshold int `yaml:"small_batch_threshold"`

	// Tiers are ordered by MaxPassages; the last one is unbounded.
	Tiers []Tier `yaml:"tiers"`

	// QuotaWarningSlices is the slice count above which a quota advisory is raised.
	QuotaWarningSlices int `yaml:"quota_warning_slices"`

	// SectionSeparator joins partial narratives when the merge call fails.
	SectionSeparator string `yaml:"section_separator"`

	// RunTimeout bounds a whole run, independent of per-call retries.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// DefaultConfig returns the standard tier table and thresholds.
func DefaultConfig() Config {
	return Config{
		SmallBatchThreshold: 15,
		Tiers: []Tier{
			{MaxPassages: 30, BatchSize: 10, Pause: 5 * time.Second},
			{MaxPassages: 100, BatchSize: 15, Pause: 10 * time.Second},
			{MaxPassages: 0, BatchSize: 20, Pause: 15 * time.Second},
		},
		QuotaWarningSlices: 10,
		SectionSeparator:   "\n\n---\n\n",
		RunTimeout:         30 * time.Minute,
	}
}

// Validate checks that the tier table is monotonic and ends unbounded.
func (c Config) Validate() error {
	if c.SmallBatchThreshold < 0 {
		return fmt.Errorf("%w: small batch threshold must not be negative", ErrInvalidConfig)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrInvalidConfig)
	}
	previous := 0
	for i, tier := range c.Tiers {
		last := i == len(c.Tiers)-1
		switch {
		case tier.BatchSize <= 0:
			return fmt.Errorf("%w: tier %d batch size must be positive", ErrInvalidConfig, i+1)
		case tier.Pause < 0:
			return fmt.Errorf("%w: tier %d pause must not be negative", ErrInvalidConfig, i+1)
		case last && tier.MaxPassages != 0:
			return fmt.Errorf("%w: last tier must be unbounded (max_passages 0)", ErrInvalidConfig)
		case !last && tier.MaxPassages <= previous:
			return fmt.Errorf("%w: tier %d max passages must exceed %d", ErrInvalidConfig, i+1, previous)
		}
		previous = tier.MaxPassages
	}
	if c.QuotaWarningSlices < 0 {
		return fmt.Errorf("%w: quota warning slices must not be negative", ErrInvalidConfig)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// TierFor returns the tier covering count passages.
func (c Config) TierFor(count int) Tier {
	for _, tier := range c.Tiers {
		if tier.MaxPassages == 0 || count <= tier.MaxPassages {
			return tier
		}
	}
	return c.Tiers[len(c.Tiers)-1]
}
