package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/dental-clinic-records/internal/app"
	"github.com/hackgods/dental-clinic-records/internal/auth"
	"github.com/hackgods/dental-clinic-records/internal/config"
	"github.com/hackgods/dental-clinic-records/internal/kv"
	"github.com/hackgods/dental-clinic-records/internal/seed"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	fake := flag.Int("fake", 0, "generate this many fake patients instead of the default bundle")
	rngSeed := flag.Uint64("rand-seed", 0, "random seed for -fake (0 picks one from the clock)")
	out := flag.String("out", "", `write the bundle as JSON to this file ("-" for stdout) instead of storage`)
	force := flag.Bool("force", false, "overwrite collections that already hold data and end any stored session")
	hash := flag.Bool("hash", false, "store bcrypt hashes instead of plain passwords")
	flag.Parse()

	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	bundle, err := buildBundle(cfg, *fake, *rngSeed)
	if err != nil {
		log.Fatalf("build bundle: %v", err)
	}
	if *hash {
		if err := hashPasswords(&bundle); err != nil {
			log.Fatalf("hash passwords: %v", err)
		}
	}

	log.Printf("bundle: %d users, %d patients, %d incidents",
		len(bundle.Users), len(bundle.Patients), len(bundle.Incidents))

	if *out != "" {
		if err := writeFile(*out, bundle); err != nil {
			log.Fatalf("write bundle: %v", err)
		}
		log.Println("seed complete")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	adapter := kv.NewAdapter(backend, cfg.StorageNamespace, logger)
	defer adapter.Close()

	if *force {
		overwrite(ctx, adapter, bundle)
	} else {
		seeded := adapter.SeedIfAbsent(ctx, bundle.KV())
		if len(seeded) == 0 {
			log.Println("storage already holds every collection, nothing written (use -force to overwrite)")
		}
	}

	log.Println("seed complete")
}

func buildBundle(cfg config.Config, fake int, rngSeed uint64) (seed.Bundle, error) {
	if fake <= 0 {
		return seed.Resolve(cfg.SeedFile)
	}
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}
	log.Printf("generating %d fake patients (rand-seed=%d)", fake, rngSeed)
	return seed.Fake(gofakeit.New(rngSeed), fake, time.Now()), nil
}

func hashPasswords(b *seed.Bundle) error {
	for i := range b.Users {
		h, err := auth.HashPassword(b.Users[i].Password)
		if err != nil {
			return err
		}
		b.Users[i].Password = h
	}
	return nil
}

func overwrite(ctx context.Context, adapter *kv.Adapter, b seed.Bundle) {
	s := b.KV()
	for key, v := range map[string]any{
		kv.KeyUsers:     s.Users,
		kv.KeyPatients:  s.Patients,
		kv.KeyIncidents: s.Incidents,
	} {
		if v == nil {
			continue
		}
		if !adapter.Write(ctx, key, v) {
			log.Fatalf("write %s failed", key)
		}
		log.Printf("wrote %s", key)
	}
	adapter.Remove(ctx, kv.KeyCurrentUser)
}

func writeFile(path string, b seed.Bundle) error {
	if path == "-" {
		return b.Write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
