package config_test

import (
	"errors"
	"testing"

	"github.com/bridgit-ai/bridgit/internal/config"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt"
	sttmock "github.com/bridgit-ai/bridgit/pkg/provider/stt/mock"
	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
	translatemock "github.com/bridgit-ai/bridgit/pkg/provider/translate/mock"
)

func TestRegistryCreateSTT(t *testing.T) {
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		gotEntry = entry
		return &sttmock.Provider{}, nil
	})

	entry := config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "whisper-1"}
	p, err := reg.CreateSTT(entry)
	if err != nil {
		t.Fatalf("CreateSTT() error = %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT() returned nil provider")
	}
	if gotEntry.APIKey != "sk-test" || gotEntry.Model != "whisper-1" {
		t.Errorf("factory received entry %+v", gotEntry)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := config.NewRegistry()

	_, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
	_, err = reg.CreateTranslate(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTranslate(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
	_, err = reg.CreateTTS(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryFactoryErrorPropagates(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("missing api key")
	reg.RegisterTranslate("deepl", func(config.ProviderEntry) (translate.Provider, error) {
		return nil, wantErr
	})

	_, err := reg.CreateTranslate(config.ProviderEntry{Name: "deepl"})
	if !errors.Is(err, wantErr) {
		t.Errorf("CreateTranslate() error = %v, want %v", err, wantErr)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTranslate("llm", func(config.ProviderEntry) (translate.Provider, error) {
		t.Error("overwritten factory was called")
		return nil, nil
	})
	reg.RegisterTranslate("llm", func(config.ProviderEntry) (translate.Provider, error) {
		return &translatemock.Provider{}, nil
	})

	p, err := reg.CreateTranslate(config.ProviderEntry{Name: "llm"})
	if err != nil || p == nil {
		t.Fatalf("CreateTranslate() = %v, %v", p, err)
	}
}
