package demo

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/providers"
)

// Descriptions are the canned answers returned in demo mode.
var Descriptions = []string{
	"A calm natural scene with blue sky, white clouds and green vegetation. The light is soft and the mood is peaceful.",
	"A modern city skyline of tall buildings whose glass facades reflect the sky. The composition is symmetrical and the colors are vivid.",
	"A portrait of a person with a natural expression, soft shadows across the face and a blurred background that isolates the subject.",
	"An elegant plate of food with rich colors and crisp detail, lit from the side to make it look inviting.",
	"A cozy, tidy interior with simple modern furniture and daylight falling through a window.",
}

const (
	detailSuffix     = " The image is rich in detail and rewards a closer look."
	atmosphereSuffix = " The emotional tone is sincere and the atmosphere is well conveyed."
)

var (
	detailKeywords     = []string{"detail", "详细"}
	atmosphereKeywords = []string{"emotion", "atmosphere", "mood", "情感", "氛围"}
)

// Demo answers without calling any model
type Demo struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a demo provider. A nil rng is seeded from the clock.
func New(rng *rand.Rand) *Demo {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Demo{rng: rng}
}

// Describe picks a canned description and decorates it according to what
// the instruction asks for.
func (d *Demo) Describe(ctx context.Context, config providers.Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	description := Descriptions[d.rng.Intn(len(Descriptions))]
	d.mu.Unlock()

	instruction := strings.ToLower(config.Instruction)
	if containsAny(instruction, detailKeywords) {
		description += detailSuffix
	}
	if containsAny(instruction, atmosphereKeywords) {
		description += atmosphereSuffix
	}
	return description, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
