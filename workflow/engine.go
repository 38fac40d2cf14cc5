package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/ruteri/ip-registration-workflows/aggregator"
	"github.com/ruteri/ip-registration-workflows/chainconfig"
	"github.com/ruteri/ip-registration-workflows/classifier"
	"github.com/ruteri/ip-registration-workflows/executor"
	"github.com/ruteri/ip-registration-workflows/interfaces"
	"github.com/ruteri/ip-registration-workflows/metrics"
	"github.com/ruteri/ip-registration-workflows/signature"
	"github.com/ruteri/ip-registration-workflows/validator"
)

// DefaultValidationConcurrency bounds the requests validated in parallel.
const DefaultValidationConcurrency = 8

var (
	// ErrChainMismatch is returned when the contract set is configured for another chain than the backend.
	ErrChainMismatch = errors.New("contract set does not match the backend chain")

	// ErrEncodedOnly is returned by Register when asked for call data only.
	ErrEncodedOnly = errors.New("encoded call data is produced by Prepare")
)

// Config configures an Engine. Backend and Addresses are required.
type Config struct {
	Backend   interfaces.ChainBackend
	Addresses *chainconfig.ContractSet
	// Signer authorizes workflow contracts on IP accounts. It must be the
	// backend's sender. Without it only requests needing no authorization
	// can be registered.
	Signer interfaces.TypedDataSigner

	ConfirmTimeout        time.Duration
	SignatureDeadline     time.Duration
	ValidationConcurrency int
	Now                   func() time.Time
	Log                   *slog.Logger
}

// Engine registers batches of requests on one chain. It holds no state between
// calls, but calls sharing a sender must not run concurrently.
type Engine struct {
	cfg         Config
	validator   *validator.Validator
	classifier  *classifier.Classifier
	signatures  *signature.Generator
	concurrency int
	log         *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	if cfg.Backend == nil {
		return nil, errors.New("chain backend is required")
	}
	if cfg.Addresses == nil {
		return nil, errors.New("contract set is required")
	}
	if err := cfg.Addresses.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract set: %w", err)
	}
	if chainID := cfg.Backend.ChainID(); chainID == nil || chainID.Cmp(cfg.Addresses.ChainID) != 0 {
		return nil, fmt.Errorf("%w: backend %v, contracts %s", ErrChainMismatch, chainID, cfg.Addresses.ChainID)
	}
	if cfg.Signer != nil && cfg.Signer.Address() != cfg.Backend.Sender() {
		return nil, &interfaces.AuthorizationError{Reason: fmt.Sprintf("signer %s is not the sender %s", cfg.Signer.Address().Hex(), cfg.Backend.Sender().Hex())}
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	concurrency := cfg.ValidationConcurrency
	if concurrency <= 0 {
		concurrency = DefaultValidationConcurrency
	}

	return &Engine{
		cfg:         cfg,
		validator:   validator.New(cfg.Backend, cfg.Addresses, log),
		classifier:  classifier.New(cfg.Addresses),
		signatures:  signature.NewGenerator(cfg.Backend.ChainID(), cfg.Addresses, cfg.Signer, log),
		concurrency: concurrency,
		log:         log,
	}, nil
}

// executor returns an executor logging with log.
func (e *Engine) executor(log *slog.Logger) *executor.Executor {
	return executor.New(executor.Config{
		Backend:           e.cfg.Backend,
		Addresses:         e.cfg.Addresses,
		Signatures:        e.signatures,
		ConfirmTimeout:    e.cfg.ConfirmTimeout,
		SignatureDeadline: e.cfg.SignatureDeadline,
		Now:               e.cfg.Now,
		Log:               log,
	})
}

func (e *Engine) runLogger(op string, requests int) *slog.Logger {
	return e.log.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("op", op),
		slog.Int("requests", requests))
}

// Validate checks every request without touching chain state. All failures
// are returned, ordered by request index.
func (e *Engine) Validate(ctx context.Context, requests []interfaces.RegistrationRequest) error {
	_, err := e.prepare(ctx, requests)
	return err
}

// Register validates, classifies and executes requests and returns one result
// per request, in input order. A nil error means every request was registered;
// follow-up failures are reported on the results only.
//
// Validation failures abort the call before any transaction and return no
// results. Later failures return the results alongside the error.
func (e *Engine) Register(ctx context.Context, requests []interfaces.RegistrationRequest, opts interfaces.Options) ([]interfaces.ExecutionResult, error) {
	if opts.EncodedTxDataOnly {
		return nil, ErrEncodedOnly
	}
	log := e.runLogger("register", len(requests))

	prepared, err := e.prepare(ctx, requests)
	if err != nil {
		log.Warn("Validation failed", slog.String("err", err.Error()))
		return nil, err
	}
	buckets, err := e.classifier.Classify(prepared, opts)
	if err != nil {
		return nil, interfaces.WrapStage(interfaces.StageClassify, -1, err)
	}
	log.Info("Registering requests", slog.Int("buckets", len(buckets)))

	exec := e.executor(log)
	var (
		batches [][]interfaces.ExecutionResult
		errs    *multierror.Error
	)
	for i := range buckets {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		out := exec.Execute(ctx, &buckets[i], prepared, opts)
		batches = append(batches, out.Results)

		if out.Err != nil {
			log.Warn("Bucket failed",
				slog.Int("bucket", i),
				slog.String("method", buckets[i].Method),
				slog.String("err", out.Err.Error()))
			errs = multierror.Append(errs, out.Err)
		}
		for _, res := range out.Results {
			if res.Err != nil && res.Err != out.Err {
				errs = multierror.Append(errs, res.Err)
			}
		}
		if !opts.ContinueOnFailure && errs.ErrorOrNil() != nil {
			break
		}
	}

	results := aggregator.Assemble(len(requests), batches...)
	log.Info("Registration finished",
		slog.Int("registered", countRegistered(results)),
		slog.Int("failed", len(results)-countRegistered(results)))
	return results, flatten(errs)
}

// Prepare validates and classifies requests and returns the unsigned call data
// of every bucket. Nothing is signed or submitted.
func (e *Engine) Prepare(ctx context.Context, requests []interfaces.RegistrationRequest, opts interfaces.Options) ([]interfaces.EncodedBucket, error) {
	log := e.runLogger("prepare", len(requests))

	prepared, err := e.prepare(ctx, requests)
	if err != nil {
		return nil, err
	}
	buckets, err := e.classifier.Classify(prepared, opts)
	if err != nil {
		return nil, interfaces.WrapStage(interfaces.StageClassify, -1, err)
	}

	exec := e.executor(log)
	encoded := make([]interfaces.EncodedBucket, 0, len(buckets))
	for i := range buckets {
		out, err := exec.Encode(ctx, &buckets[i], prepared)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, out)
	}
	log.Info("Prepared call data", slog.Int("buckets", len(encoded)))
	return encoded, nil
}

// prepare validates every request concurrently. Validation is read-only, so
// all requests are checked even when one fails.
func (e *Engine) prepare(ctx context.Context, requests []interfaces.RegistrationRequest) ([]*interfaces.PreparedRequest, error) {
	if len(requests) == 0 {
		return nil, interfaces.WrapStage(interfaces.StageValidate, -1, &interfaces.ValidationError{Field: "requests", Reason: "at least one request is required"})
	}

	prepared := make([]*interfaces.PreparedRequest, len(requests))
	failures := make([]error, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range requests {
		g.Go(func() error {
			p, err := e.validator.Prepare(gctx, i, requests[i])
			metrics.RequestsValidated.WithLabelValues(metrics.Outcome(err)).Inc()
			if err != nil {
				stage := interfaces.StageValidate
				var readErr *interfaces.ChainReadError
				if errors.As(err, &readErr) {
					stage = interfaces.StageRead
				}
				failures[i] = interfaces.WrapStage(stage, i, err)
				return nil
			}
			prepared[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs *multierror.Error
	for _, err := range failures {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := flatten(errs); err != nil {
		return nil, err
	}
	return prepared, nil
}

// flatten returns a lone error as is and several as a multierror.
func flatten(errs *multierror.Error) error {
	if errs == nil {
		return nil
	}
	if len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.ErrorOrNil()
}

func countRegistered(results []interfaces.ExecutionResult) int {
	n := 0
	for _, res := range results {
		if res.Err == nil {
			n++
		}
	}
	return n
}
