// Package speech transcribes recorded interviews with Google Cloud Speech.
package speech

import (
	"context"
	"fmt"
	"os"
	"strings"

	"personasim/internal/config"
	"personasim/internal/errors"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
)

// maxSyncBytes is the inline audio limit for synchronous recognition.
const maxSyncBytes = 10 * 1024 * 1024

// Recognizer is the part of the speech client the transcriber uses.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// Transcriber turns short audio recordings into text.
type Transcriber struct {
	recognizer Recognizer
	cfg        config.SpeechConfig
	logger     *errors.Logger
	closer     func() error
}

// New connects to Cloud Speech with Application Default Credentials.
func New(ctx context.Context, cfg config.SpeechConfig, logger *errors.Logger) (*Transcriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, errors.NewServiceError(errors.ErrCodeAIServiceFailed, "failed to create speech client", err)
	}
	t := NewWithRecognizer(client, cfg, logger)
	t.closer = client.Close
	return t, nil
}

// NewWithRecognizer wraps an existing recognizer.
func NewWithRecognizer(r Recognizer, cfg config.SpeechConfig, logger *errors.Logger) *Transcriber {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Transcriber{recognizer: r, cfg: cfg, logger: logger}
}

// Close releases the speech client connection.
func (t *Transcriber) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer()
}

// Encoding maps a configured encoding name to the API enum.
func Encoding(name string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, nil
	}
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[key]
	if !ok {
		return 0, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown speech encoding %q", name), nil)
	}
	return speechpb.RecognitionConfig_AudioEncoding(v), nil
}

// TranscribeFile reads the recording at path and transcribes it.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot read audio file", err).
			WithContext("path", path)
	}
	return t.Transcribe(ctx, data)
}

// Transcribe runs synchronous recognition, good for about a minute of
// audio, and joins the best alternative of every result with spaces.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.NewInputError(errors.ErrCodeInvalidFormat, "audio is empty", nil)
	}
	if len(audio) > maxSyncBytes {
		return "", errors.NewInputError(errors.ErrCodeInvalidFormat,
			"audio is too long for synchronous recognition", nil).WithContext("bytes", len(audio))
	}

	encoding, err := Encoding(t.cfg.Encoding)
	if err != nil {
		return "", err
	}

	resp, err := t.recognizer.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            t.cfg.SampleRateHertz,
			LanguageCode:               t.cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		t.logger.LogError(err, "Speech recognition failed", "bytes", len(audio))
		return "", errors.NewServiceError(errors.ErrCodeAIServiceFailed, "speech recognition failed", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
				parts = append(parts, text)
			}
		}
	}

	t.logger.Info("Audio transcribed",
		"bytes", len(audio),
		"results", len(parts),
		"language", t.cfg.LanguageCode)
	return strings.Join(parts, " "), nil
}
