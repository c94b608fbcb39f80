package state

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"stylepipe/config"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	if ctx == nil {
		t.Fatal("ContextWithEnv() returned nil")
	}

	env := EnvFromContext(ctx)
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}
	if env.start.IsZero() {
		t.Error("Environment start time not set")
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error: %v", err)
	}
	if env.Cwd != wd {
		t.Errorf("Cwd = %q, want %q", env.Cwd, wd)
	}
}

func TestEnvFromContext(t *testing.T) {
	t.Run("valid context", func(t *testing.T) {
		if env := EnvFromContext(ContextWithEnv(context.Background())); env == nil {
			t.Error("Expected non-nil environment")
		}
	})

	t.Run("panic on missing env", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic when env not in context")
			}
		}()
		EnvFromContext(context.Background())
	})
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	time.Sleep(10 * time.Millisecond)
	if uptime := env.Uptime(); uptime < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, expected at least 10ms", uptime)
	}
}

func TestLocalEnv_RedirectStdLog(t *testing.T) {
	t.Run("with logger", func(t *testing.T) {
		env := &LocalEnv{
			Log: zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))),
		}

		env.RedirectStdLog()
		if env.restoreStdLog == nil {
			t.Error("Expected restoreStdLog to be set")
		}
		env.RestoreStdLog()
	})

	t.Run("without logger", func(t *testing.T) {
		env := &LocalEnv{}

		env.RedirectStdLog()
		if env.restoreStdLog != nil {
			t.Error("Expected restoreStdLog to remain nil")
		}
		// Should not panic
		env.RestoreStdLog()
	})
}

func TestLocalEnv_Integration(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)

	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error: %v", err)
	}
	env.Cfg = cfg
	env.Log = zaptest.NewLogger(t)
	env.Overwrite = true

	env.RedirectStdLog()
	env.RestoreStdLog()

	if again := EnvFromContext(ctx); again != env || !again.Overwrite || again.Cfg == nil {
		t.Error("Environment is not shared through context")
	}
}
