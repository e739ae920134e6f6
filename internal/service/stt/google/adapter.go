// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"tradietalk-voice-service/internal/service/stt"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode    string
	SampleRateHz    int32
	InterimResults  bool
	AudioEncoding   string
	NoSpeechTimeout time.Duration // 0 leaves the engine default
}

// DefaultConfig returns settings tuned for Australian English dictation.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "en-AU",
		SampleRateHz:    8000,
		InterimResults:  true,
		AudioEncoding:   "LINEAR16",
		NoSpeechTimeout: 8 * time.Second,
	}
}

// Engine owns the Speech client shared by all recognition sessions.
type Engine struct {
	client *speech.Client
	cfg    Config
}

// NewEngine dials Google Speech-to-Text.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{client: c, cfg: cfg}, nil
}

// Factory returns an stt.Factory creating one Adapter per session.
func (e *Engine) Factory() stt.Factory {
	return func(context.Context, stt.ClientLink) (stt.Recognizer, error) {
		return &Adapter{client: e.client, cfg: e.cfg}, nil
	}
}

// Close releases the Speech client.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Adapter implements stt.Recognizer using a streaming recognize call.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	closed bool
}

// Start opens the stream, sends the recognition config and begins listening.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return &stt.CaptureError{Code: codeFor(err), Err: err}
	}

	streamingConfig := &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
			SampleRateHertz:            a.cfg.SampleRateHz,
			LanguageCode:               a.cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		InterimResults: a.cfg.InterimResults,
	}
	if a.cfg.NoSpeechTimeout > 0 {
		streamingConfig.EnableVoiceActivityEvents = true
		streamingConfig.VoiceActivityTimeout = &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{
			SpeechStartTimeout: durationpb.New(a.cfg.NoSpeechTimeout),
		}
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig,
		},
	}); err != nil {
		return &stt.CaptureError{Code: codeFor(err), Err: err}
	}

	a.mu.Lock()
	a.stream = stream
	a.closed = false
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream, closed := a.stream, a.closed
	a.mu.Unlock()

	if stream == nil || closed {
		return nil
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream; remaining results arrive before the end.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream == nil || a.closed {
		return nil
	}
	a.closed = true
	return a.stream.CloseSend()
}

// listen receives responses until the stream ends and invokes callbacks.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			cb.OnEnd()
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("sttProvider", "google").Msg("Streaming recognize failed")
			cb.OnError(&stt.CaptureError{Code: codeFor(err), Err: err})
			return
		}

		if resp.SpeechEventType == speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_TIMEOUT {
			_ = a.Close()
			cb.OnError(&stt.CaptureError{Code: stt.CodeNoSpeech})
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				cb.OnPartial(alt.Transcript)
			}
		}
	}
}

// codeFor maps a gRPC failure onto a capture error code.
func codeFor(err error) string {
	switch status.Code(err) {
	case codes.Canceled:
		return stt.CodeAborted
	case codes.Unavailable, codes.DeadlineExceeded:
		return stt.CodeNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		return stt.CodeServiceNotAllowed
	case codes.OutOfRange, codes.ResourceExhausted:
		return stt.CodeLimitExceeded
	case codes.InvalidArgument:
		return stt.CodeLanguageNotAllowed
	default:
		return stt.CodeUnknown
	}
}

func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
