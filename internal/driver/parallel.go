// Package driver runs the analyses over whole dumps: it fans procedures out
// across workers, isolates per-procedure failures in their own result slot
// and caches accessibility results on disk.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"verge/internal/accessible"
	"verge/internal/diag"
	"verge/internal/dump"
	"verge/internal/mir"
	"verge/internal/observ"
	"verge/internal/vir"
)

// Options configures a driver run. The zero value is usable: one worker per
// CPU, a default diagnostic budget, no cache, no timer.
type Options struct {
	// Jobs bounds worker parallelism. Zero or negative means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics bounds the per-procedure bag.
	MaxDiagnostics int
	// Cache, when set, short-circuits accessibility for unchanged procedures.
	Cache *DiskCache
	// Timer, when set, receives phase timings.
	Timer *observ.Timer
}

const defaultMaxDiagnostics = 64

// Result is the outcome for one procedure. Procedures are independent: a
// failure here never affects sibling results.
type Result struct {
	Proc string

	// Access holds per-point accessibility states when HasAccess is set.
	Access    accessible.Pointwise[*accessible.State]
	HasAccess bool

	// Final and Dropped are the permission engine's outcome when the dump
	// carried a statement sequence.
	Final   *vir.State
	Dropped []vir.Perm

	Bag    *diag.Bag
	Cached bool
}

// AnalyzeFile decodes a dump and analyzes every procedure in it. The error
// return covers dump-wide defects and cancellation; per-procedure failures
// land in the procedure's bag.
func AnalyzeFile(ctx context.Context, f *dump.File, opts Options) ([]Result, error) {
	var unit *dump.Unit
	err := opts.Timer.Time("decode", func() error {
		var err error
		unit, err = dump.Build(f)
		return err
	})
	if err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	maxDiag := opts.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = defaultMaxDiagnostics
	}

	done := opts.Timer.Start("analyze")
	defer func() { done(fmt.Sprintf("%d procedures", len(unit.Procs))) }()

	// Result slots are per-goroutine, no mutex needed.
	results := make([]Result, len(unit.Procs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(unit.Procs), 1)))
	for i := range unit.Procs {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = analyzeProc(unit, &unit.Procs[i], &f.Procs[i], opts.Cache, maxDiag)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func analyzeProc(unit *dump.Unit, proc *dump.Proc, wire *dump.ProcDef, cache *DiskCache, maxDiag int) Result {
	res := Result{Proc: proc.Fn.Name, Bag: diag.NewBag(maxDiag)}

	var key Digest
	haveKey := false
	if cache != nil {
		if k, err := ProcDigest(wire); err == nil {
			key, haveKey = k, true
		}
	}
	if haveKey {
		var cached cachedResult
		if ok, err := cache.get(key, &cached); err == nil && ok {
			res.Access = restoreAccess(&cached)
			res.HasAccess = true
			res.Cached = true
		}
	}
	if !res.HasAccess {
		access, err := accessible.NewAnalysis(unit.Types, proc.Fn, proc.Init, proc.Borrows).Run()
		if err != nil {
			res.Bag.Add(toDiagnostic(proc.Fn.Name, err))
		} else {
			res.Access = access
			res.HasAccess = true
			if haveKey {
				// A failed cache write costs a recomputation next run,
				// nothing else.
				_ = cache.put(key, snapshotAccess(access))
			}
		}
	}

	if len(proc.Stmts) > 0 {
		engine := vir.NewEngine(unit.Types, proc.Fn, proc.Preds, vir.NewState())
		if err := engine.ApplyAll(proc.Stmts); err != nil {
			res.Bag.Add(toDiagnostic(proc.Fn.Name, err))
		} else {
			res.Final = engine.State()
			res.Dropped = engine.Dropped()
		}
	}
	return res
}

// toDiagnostic maps the analyses' typed errors onto diagnostic codes.
func toDiagnostic(proc string, err error) diag.Diagnostic {
	d := diag.Diagnostic{Severity: diag.SevError, Proc: proc, Message: err.Error()}
	var (
		missing   *accessible.MissingFactError
		invariant *accessible.InvariantError
		malformed *vir.MalformedError
		load      *dump.LoadError
	)
	switch {
	case errors.As(err, &missing):
		d.Code = diag.AccMissingFact
		d.Point = missing.Point
	case errors.As(err, &invariant):
		d.Code = diag.AccInvariantViolation
		d.Point = invariant.Point
	case errors.As(err, &malformed):
		d.Code = diag.PermMalformedSequence
		d.Point = malformed.Stmt
	case errors.As(err, &load):
		d.Code = load.Code
	default:
		d.Code = diag.UnknownCode
	}
	return d
}

func snapshotAccess(access accessible.Pointwise[*accessible.State]) *cachedResult {
	out := &cachedResult{Schema: cacheSchemaVersion}
	for _, loc := range access.Locations() {
		st, ok := access.Before(loc)
		if !ok {
			continue
		}
		out.Points = append(out.Points, cachedPoint{
			Block:      int32(loc.Block),
			Statement:  int32(loc.Statement),
			Accessible: dump.FromPlaceSet(st.Accessible),
			Owned:      dump.FromPlaceSet(st.Owned),
		})
	}
	for _, e := range access.Edges() {
		st, ok := access.Edge(e.From, e.To)
		if !ok {
			continue
		}
		out.Points = append(out.Points, cachedPoint{
			IsEdge:     true,
			From:       int32(e.From),
			To:         int32(e.To),
			Accessible: dump.FromPlaceSet(st.Accessible),
			Owned:      dump.FromPlaceSet(st.Owned),
		})
	}
	return out
}

func restoreAccess(cached *cachedResult) accessible.Pointwise[*accessible.State] {
	access := accessible.NewPointwise[*accessible.State]()
	for _, pt := range cached.Points {
		st := &accessible.State{
			Accessible: dump.ToPlaceSet(pt.Accessible),
			Owned:      dump.ToPlaceSet(pt.Owned),
		}
		if pt.IsEdge {
			access.SetEdge(mir.BlockID(pt.From), mir.BlockID(pt.To), st)
		} else {
			access.SetBefore(mir.Location{Block: mir.BlockID(pt.Block), Statement: int(pt.Statement)}, st)
		}
	}
	return access
}
