// Command packinspect loads a pack file from disk or a URL and reports its
// contents: compiler/linker blob sizes and the per-package archive sizes.
// It exits with an error if any declared section or archive size overruns
// the file.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/crgimenes/goconfig"
	"github.com/quay/zlog"
	"github.com/rs/zerolog"

	"github.com/monstercameron/GoScript/pack"
)

// Config is parsed by goconfig from flags or environment variables.
type Config struct {
	PackPath string `cfgDefault:"" cfg:"PACK_PATH" cfgHelper:"Local path or URL of a pack file to inspect"`
	LogLevel string `cfgDefault:"info" cfg:"LOG_LEVEL" cfgHelper:"Log levels: debug, info, warning, error, fatal, panic"`
}

func main() {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true}).
		With().Timestamp().Caller().
		Logger()

	conf := Config{}
	if err := goconfig.Parse(&conf); err != nil {
		log.Fatal().Msgf("failed to parse config: %v", err)
	}
	log = log.Level(logLevel(conf))
	zlog.Set(&log)

	if conf.PackPath == "" {
		log.Fatal().Msg("PACK_PATH is required")
	}

	buf, err := loadPack(ctx, conf.PackPath)
	if err != nil {
		log.Fatal().Msgf("failed to load pack: %v", err)
	}

	p, err := pack.Parse(buf)
	if err != nil {
		log.Fatal().Msgf("failed to parse pack: %v", err)
	}

	zlog.Info(ctx).
		Int("bytes", len(buf)).
		Int("compiler_bytes", len(p.GetCompilerBytes())).
		Int("linker_bytes", len(p.GetLinkerBytes())).
		Int("packages", len(p.PackageNames())).
		Msg("pack loaded")

	for _, name := range p.PackageNames() {
		data, ok := p.GetPackage(name)
		if !ok {
			zlog.Warn(ctx).Str("package", name).Msg("declared but missing from index")
			continue
		}
		fmt.Printf("%-40s %8d bytes\n", name, len(data))
	}
}

// loadPack reads a pack from either a filesystem path or an http(s) URL.
func loadPack(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(location)
}

func logLevel(conf Config) zerolog.Level {
	if l, err := zerolog.ParseLevel(strings.ToLower(conf.LogLevel)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
