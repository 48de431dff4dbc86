package domain

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	m "veil.dev/pkg/veil/internal/model"
)

// BuildMeta assembles the metadata artifact for one finished run. Optional
// sections honor the configured MetaPolicy; the writer always emits the
// current schema version.
func BuildMeta(cfg *m.EffectiveConfig, result *Result, inputSource, outputSource string) (*m.ObfuMeta, error) {
	stats := make(map[string]int)
	for _, count := range result.Stats.Counts() {
		stats[count.Label] = count.Count
	}

	meta := &m.ObfuMeta{
		Version:      m.MetaVersionV2,
		CreatedUTC:   time.Now().UTC().Format(time.RFC3339),
		Config:       metaConfig(cfg),
		Stats:        stats,
		ValueSalt:    cfg.ValueSalt,
		SiteSaltKey:  encodeSiteKey(result.SiteKey),
		InputSHA256:  sha256Text(inputSource),
		OutputSHA256: sha256Text(outputSource),
		Warnings:     result.Stats.Warnings,
	}

	if !cfg.Meta.OmitRenameMap {
		meta.RenameMap = result.Renames
	}

	if !cfg.Meta.OmitHelperHints {
		meta.HelperHints = result.Hints
	}

	if cfg.Meta.IncludeSource {
		payload, err := encodeSourcePayload(inputSource)
		if err != nil {
			return nil, err
		}

		meta.Source = payload
	}

	return meta, nil
}

func metaConfig(cfg *m.EffectiveConfig) *m.MetaConfig {
	order := make([]string, len(cfg.Order))
	for i, feature := range cfg.Order {
		order[i] = string(feature)
	}

	rates := make(map[string]float64, len(cfg.Rates))
	for feature, rate := range cfg.Rates {
		rates[string(feature)] = rate
	}

	modes := make(map[string]string, len(cfg.Modes))
	for feature, mode := range cfg.Modes {
		modes[string(feature)] = mode
	}

	return &m.MetaConfig{
		Level:        cfg.Level,
		Profile:      cfg.Profile,
		DynamicLevel: string(cfg.DynamicLevel),
		Passes:       cfg.Passes,
		Order:        order,
		Rates:        rates,
		Modes:        modes,
		Seed:         cfg.Seed,
	}
}

func sha256Text(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}

// encodeSourcePayload compresses and armors the original source text for
// embedding in the metadata artifact.
func encodeSourcePayload(source string) (string, error) {
	var buf bytes.Buffer

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", err
	}

	if _, err := zw.Write([]byte(source)); err != nil {
		return "", err
	}

	if err := zw.Close(); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeSourcePayload inverts encodeSourcePayload.
func decodeSourcePayload(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode source payload: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decompress source payload: %w", err)
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decompress source payload: %w", err)
	}

	return string(text), nil
}
