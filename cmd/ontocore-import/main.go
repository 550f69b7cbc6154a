// Command ontocore-import wires the core's composition root and runs
// a single RF2 import job from local files. REST routing, archive
// unpacking and administrative tooling around it are out of scope
// here; this binary exists to exercise the wiring end to end the way
// the teacher's cmd/backfill_file_signatures exercises its own
// repos/services wiring from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/config"
	"github.com/ontocore/ontocore-server/internal/codesystem"
	"github.com/ontocore/ontocore-server/internal/db"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/docstore"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/integrity"
	"github.com/ontocore/ontocore-server/internal/jobregistry"
	"github.com/ontocore/ontocore-server/internal/logger"
	"github.com/ontocore/ontocore-server/internal/mrcm"
	"github.com/ontocore/ontocore-server/internal/mrcm/generator"
	"github.com/ontocore/ontocore-server/internal/observability"
	"github.com/ontocore/ontocore-server/internal/redisregistry"
	"github.com/ontocore/ontocore-server/internal/rf2"
	"github.com/ontocore/ontocore-server/internal/rf2/reader"
	"github.com/ontocore/ontocore-server/internal/semindex"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var (
		branchPath  = flag.String("branch", "MAIN", "branch path to import onto")
		importType  = flag.String("type", "SNAPSHOT", "DELTA, SNAPSHOT or FULL")
		concept     = flag.String("concept", "", "path to the sct2_Concept file")
		description = flag.String("description", "", "path to the sct2_Description file")
		relationship = flag.String("relationship", "", "path to the sct2_Relationship (or StatedRelationship) file")
		concrete    = flag.String("concrete-relationship", "", "path to the sct2_RelationshipConcreteValues file")
		identifier  = flag.String("identifier", "", "path to the sct2_Identifier file")
		refset      = flag.String("refset", "", "path to a der2_*RefsetMember file")
		createVersion = flag.Bool("create-version", false, "create a CodeSystemVersion once the import completes")
	)
	flag.Parse()

	cfg := config.Load(log)

	ctx := context.Background()
	shutdownTracing := observability.Init(ctx, log, cfg)
	defer shutdownTracing(ctx)

	conn, err := db.Open(cfg, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	substrate := branchstore.NewSubstrate(conn, log)
	store := docstore.NewStore(conn, log)
	codeSystems := codesystem.NewService(conn, log)

	index, err := semindex.NewFromEnv(log)
	if err != nil {
		log.Warn("semantic index unavailable, integrity and MRCM commit hooks are disabled", "error", err)
	}
	if index != nil {
		defer index.Close(ctx)
	}

	rf2Store := rf2.NewGormStore(conn)
	coordinator := rf2.NewCoordinator(substrate, rf2Store, codeSystems, reader.NewTSVLineSource(), log)
	if index != nil {
		integrityEngine := integrity.NewEngine(substrate, store, codeSystems, index, log)
		mrcmUpdater := mrcm.NewUpdater(substrate, store, mrcm.NewEvaluator(index), generator.New(), log)
		coordinator = coordinator.WithCommitHooks(integrityEngine, mrcmUpdater)
	}

	jobs := jobregistry.New(cfg.JobTTL)
	var mirror *redisregistry.Mirror
	if cfg.RedisAddr != "" {
		mirror, err = redisregistry.New(cfg.RedisAddr, cfg.JobTTL, log)
		if err != nil {
			log.Warn("redis job mirror unavailable", "error", err)
		}
	}

	files, moduleCutoffs, err := openFiles(fileFlags{
		concept:              *concept,
		description:          *description,
		relationship:         *relationship,
		concreteRelationship: *concrete,
		identifier:           *identifier,
		refsetMember:         *refset,
	})
	if err != nil {
		log.Error("failed to open input files", "error", err)
		os.Exit(1)
	}
	defer closeFiles(files)

	job := rf2.NewJob(rf2.Config{
		Type:                    rf2.ImportType(*importType),
		BranchPath:              *branchPath,
		CreateCodeSystemVersion: *createVersion,
	})
	jobs.Put(job)
	if mirror != nil {
		mirror.Put(ctx, job)
	}

	hasExistingContent := func(ctx context.Context, branchPath string) (bool, error) {
		dbc := dbctx.New(ctx, nil)
		criteria, err := substrate.BranchCriteriaOn(dbc, branchPath)
		if err != nil {
			return false, err
		}
		concepts, err := docstore.Find[*domain.Concept](dbc, store.DB(), criteria, docstore.Term("active", true))
		if err != nil {
			return false, err
		}
		return len(concepts) > 0, nil
	}
	if err := coordinator.ValidateJob(ctx, job.Config, hasExistingContent); err != nil {
		log.Error("import job failed validation", "error", err)
		os.Exit(1)
	}

	if err := coordinator.Run(ctx, job, files, moduleCutoffs); err != nil {
		log.Error("import failed", "branch", *branchPath, "error", err)
		jobs.Put(job)
		if mirror != nil {
			mirror.Put(ctx, job)
		}
		os.Exit(1)
	}

	jobs.Put(job)
	if mirror != nil {
		mirror.Put(ctx, job)
	}
	log.Info("import completed", "branch", *branchPath, "max_effective_time", job.MaxEffectiveTime)
}
