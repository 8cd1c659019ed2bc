// Package clone copies one profile into a new profile, possibly under another
// account, and checks the copy field by field.
package clone

import (
	"context"
	"fmt"

	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/schema"
	"github.com/nxsync/nxsync/pkg/targets"
)

type Step string

const (
	StepFetch    Step = "fetch"
	StepValidate Step = "validate"
	StepCreate   Step = "create"
	StepRewrites Step = "rewrites"
	StepVerify   Step = "verify"
)

// Steps lists the pipeline steps in order.
var Steps = []Step{StepFetch, StepValidate, StepCreate, StepRewrites, StepVerify}

// StepListener follows the pipeline. StepFinished gets the error that ended or
// degraded the step, nil otherwise.
type StepListener interface {
	StepStarted(step Step)
	StepFinished(step Step, err error)
}

type Options struct {
	SourceProfileID string
	// Force clones even when the source has fields the schema table does not know.
	Force bool
	// Schema defaults to schema.Default.
	Schema   *schema.Table
	Listener StepListener
	Log      targets.Logger
}

// Result is returned once per Copy. Success is true as soon as the destination
// profile exists; later problems only add warnings and mismatches.
type Result struct {
	Success                bool     `json:"success" yaml:"success"`
	NewProfileID           string   `json:"newProfileId,omitempty" yaml:"newProfileId,omitempty"`
	FailedStep             Step     `json:"failedStep,omitempty" yaml:"failedStep,omitempty"`
	Error                  string   `json:"error,omitempty" yaml:"error,omitempty"`
	SchemaWarnings         []string `json:"schemaWarnings" yaml:"schemaWarnings"`
	SkippedFields          []string `json:"skippedFields" yaml:"skippedFields"`
	RewritesCopied         int      `json:"rewritesCopied" yaml:"rewritesCopied"`
	RewritesTotal          int      `json:"rewritesTotal" yaml:"rewritesTotal"`
	VerificationMismatches []string `json:"verificationMismatches" yaml:"verificationMismatches"`
	Warnings               []string `json:"warnings" yaml:"warnings"`
}

type run struct {
	opts Options
	log  targets.Logger
	res  *Result
}

func (r *run) start(s Step) {
	if r.opts.Listener != nil {
		r.opts.Listener.StepStarted(s)
	}
}

func (r *run) finish(s Step, err error) {
	if r.opts.Listener != nil {
		r.opts.Listener.StepFinished(s, err)
	}
}

func (r *run) fail(s Step, err error) Result {
	r.finish(s, err)
	r.log.Errorf("Clone failed at %s: %v", s, err)
	r.res.Success = false
	r.res.FailedStep = s
	r.res.Error = err.Error()
	return *r.res
}

func (r *run) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.log.Warnf("%s", msg)
	r.res.Warnings = append(r.res.Warnings, msg)
}

// Copy runs fetch, validate, create, rewrites and verify in that order. Only a
// failed fetch, an unforced schema gate or a failed create end the run early.
// src and dst may be bound to different accounts.
func Copy(ctx context.Context, src, dst nextdns.API, opts Options) Result {
	table := schema.Default
	if opts.Schema != nil {
		table = *opts.Schema
	}
	r := &run{
		opts: opts,
		log:  targets.LoggerOrNop(opts.Log),
		res: &Result{
			SchemaWarnings:         []string{},
			SkippedFields:          []string{},
			VerificationMismatches: []string{},
			Warnings:               []string{},
		},
	}

	r.start(StepFetch)
	source, err := src.GetProfile(ctx, opts.SourceProfileID)
	if err != nil {
		return r.fail(StepFetch, fmt.Errorf("fetching source profile %s: %w", opts.SourceProfileID, err))
	}
	r.finish(StepFetch, nil)

	r.start(StepValidate)
	warnings, skipped := ValidateSchema([]byte(sourceRoot(source).Raw), table)
	if warnings != nil {
		r.res.SchemaWarnings = warnings
	}
	if skipped != nil {
		r.res.SkippedFields = skipped
	}
	for _, w := range warnings {
		r.log.Warnf("Schema: %s", w)
	}
	if len(warnings) > 0 && !opts.Force {
		return r.fail(StepValidate, fmt.Errorf("source profile has %d field(s) unknown to schema %s; force the copy to clone anyway", len(warnings), table.Version))
	}
	r.finish(StepValidate, nil)

	r.start(StepCreate)
	payload := ReconstructPayload(source, table)
	newID, err := dst.CreateProfile(ctx, payload)
	if err != nil {
		return r.fail(StepCreate, fmt.Errorf("creating destination profile: %w", err))
	}
	r.res.Success = true
	r.res.NewProfileID = newID
	r.log.Infof("Created profile %s", newID)
	r.finish(StepCreate, nil)

	r.start(StepRewrites)
	rw, err := CopyRewrites(ctx, src, dst, opts.SourceProfileID, newID, r.log)
	r.res.RewritesCopied, r.res.RewritesTotal = rw.Copied, rw.Total
	if err != nil {
		r.warn("rewrites: %v", err)
	}
	r.finish(StepRewrites, err)

	r.start(StepVerify)
	err = r.verify(ctx, src, dst, newID)
	if err != nil {
		r.warn("verification incomplete: %v", err)
	}
	r.finish(StepVerify, err)

	return *r.res
}

func (r *run) verify(ctx context.Context, src, dst nextdns.API, newID string) error {
	source, err := src.GetProfile(ctx, r.opts.SourceProfileID)
	if err != nil {
		return fmt.Errorf("refetching source: %w", err)
	}
	dest, err := dst.GetProfile(ctx, newID)
	if err != nil {
		return fmt.Errorf("fetching destination: %w", err)
	}
	srcRW, err := rewritesOrEmpty(ctx, src, r.opts.SourceProfileID)
	if err != nil {
		return err
	}
	dstRW, err := rewritesOrEmpty(ctx, dst, newID)
	if err != nil {
		return err
	}

	if m := Verify(source, dest, srcRW, dstRW); len(m) > 0 {
		r.res.VerificationMismatches = m
		for _, line := range m {
			r.log.Warnf("Mismatch: %s", line)
		}
	}
	return nil
}

func rewritesOrEmpty(ctx context.Context, api nextdns.API, id string) ([]nextdns.Rewrite, error) {
	rws, err := api.ListRewrites(ctx, id)
	if nextdns.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing rewrites of %s: %w", id, err)
	}
	return rws, nil
}
