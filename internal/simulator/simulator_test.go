package simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"personasim/internal/ai/aitest"
	appErrors "personasim/internal/errors"
	"personasim/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alex = types.Persona{Name: "Alex", Age: 29, Job: "Nurse", Personality: "calm, detail-oriented"}

const alexPreamble = "You are Alex, a 29 year old Nurse with traits: calm, detail-oriented. Based on this persona, answer the following questions authentically."

func TestPreamble(t *testing.T) {
	assert.Equal(t, alexPreamble, Preamble(alex))
}

func TestRunAlexExample(t *testing.T) {
	fake := aitest.NewFake(func(prompt string) (string, error) {
		return "answer to " + prompt[strings.LastIndex(prompt, "Question: ")+10:], nil
	})
	sim := New(fake, Options{MaxOutputTokens: 500, Temperature: 0.7}, nil)

	questions := []string{"How do you feel about AI?", " Describe your ideal workday. "}
	rs, err := sim.Run(context.Background(), alex, questions)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, alexPreamble+"\n\nQuestion: How do you feel about AI?\nAnswer:", calls[0].Prompt)
	assert.Equal(t, alexPreamble+"\n\nQuestion: Describe your ideal workday.\nAnswer:", calls[1].Prompt)
	for _, c := range calls {
		assert.Equal(t, 1, strings.Count(c.Prompt, alexPreamble))
		assert.Equal(t, 1, strings.Count(c.Prompt, "Question: "))
		assert.Equal(t, int32(500), c.MaxOutputTokens)
		assert.InDelta(t, 0.7, c.Temperature, 1e-6)
	}

	require.Len(t, rs, 2)
	assert.Equal(t, types.Response{Question: "How do you feel about AI?", Answer: "answer to How do you feel about AI?\nAnswer:"}, rs[0])
	assert.Equal(t, "Describe your ideal workday.", rs[1].Question)
}

func TestRunPreservesOrder(t *testing.T) {
	for _, concurrency := range []int{1, 3, 16} {
		for _, n := range []int{1, 2, 7, 25} {
			t.Run(fmt.Sprintf("concurrency=%d/questions=%d", concurrency, n), func(t *testing.T) {
				questions := make([]string, n)
				for i := range questions {
					questions[i] = fmt.Sprintf("Question number %d?", i)
				}

				fake := aitest.NewFake(func(prompt string) (string, error) {
					// later questions finish first
					var idx int
					_, _ = fmt.Sscanf(prompt[strings.Index(prompt, "number ")+7:], "%d", &idx)
					time.Sleep(time.Duration(n-idx) * time.Millisecond)
					return fmt.Sprintf("answer %d", idx), nil
				})

				rs, err := New(fake, Options{Concurrency: concurrency}, nil).Run(context.Background(), alex, questions)
				require.NoError(t, err)
				require.Len(t, rs, n)
				for i := range questions {
					assert.Equal(t, questions[i], rs[i].Question)
					assert.Equal(t, fmt.Sprintf("answer %d", i), rs[i].Answer)
				}
				assert.Equal(t, n, fake.CallCount())
			})
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fake := aitest.NewFake(func(string) (string, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})

	questions := make([]string, 12)
	for i := range questions {
		questions[i] = fmt.Sprintf("Q%d?", i)
	}
	_, err := New(fake, Options{Concurrency: 3}, nil).Run(context.Background(), alex, questions)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunAbortsOnFailure(t *testing.T) {
	quota := appErrors.NewServiceError(appErrors.ErrCodeAIServiceFailed, "rate limited", nil)
	fake := aitest.NewFake(func(prompt string) (string, error) {
		if strings.Contains(prompt, "second") {
			return "", quota
		}
		return "fine", nil
	})

	rs, err := New(fake, Options{}, nil).Run(context.Background(), alex, []string{"first?", "second?", "third?"})
	require.Error(t, err)
	assert.Nil(t, rs, "no partial response set")
	assert.Equal(t, appErrors.ErrorTypeService, appErrors.TypeOf(err))
	assert.Equal(t, 2, fake.CallCount(), "sequential run stops at the failing question")

	appErr, _ := appErrors.As(err)
	assert.Equal(t, 1, appErr.Context["question_index"])
}

func TestRunWrapsForeignErrors(t *testing.T) {
	fake := aitest.Failing(errors.New("connection reset"))
	_, err := New(fake, Options{}, nil).Run(context.Background(), alex, []string{"Why?"})
	assert.Equal(t, appErrors.ErrorTypeService, appErrors.TypeOf(err))
	assert.ErrorContains(t, err, "connection reset")
}

func TestRunRejectsBadInput(t *testing.T) {
	sim := New(aitest.Fixed("x"), Options{}, nil)

	tests := []struct {
		name      string
		persona   types.Persona
		questions []string
	}{
		{"no name", types.Persona{}, []string{"Why?"}},
		{"no questions", alex, nil},
		{"blank question", alex, []string{"Why?", "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.persona, tt.questions)
			assert.Equal(t, appErrors.ErrorTypeInput, appErrors.TypeOf(err))
		})
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := aitest.Fixed("x")
	_, err := New(fake, Options{}, nil).Run(ctx, alex, []string{"Why?", "How?"})
	assert.Error(t, err)
	assert.Zero(t, fake.CallCount())
}
