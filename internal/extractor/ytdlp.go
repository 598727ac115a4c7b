package extractor

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/lrstanley/go-ytdlp"
)

const (
	audioFormat      = "bestaudio/best"
	youtubeExtractor = "youtube:player_client=android"
)

// YTDLP drives the yt-dlp executable.
type YTDLP struct {
	executable string
	log        logger.Interface
}

func NewYTDLP(executable string, log logger.Interface) *YTDLP {
	if log == nil {
		log = logger.GetLogger()
	}
	return &YTDLP{executable: executable, log: log}
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings().NoPlaylist()
	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}
	return cmd
}

func (y *YTDLP) Search(ctx context.Context, query string, limit int) ([]models.MediaCandidate, error) {
	res, err := y.command().
		DumpSingleJSON().
		FlatPlaylist().
		SkipDownload().
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w", err)
	}
	info, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		return nil, err
	}
	return info.candidates(limit), nil
}

func (y *YTDLP) ResolveMetadata(ctx context.Context, url string) (*Metadata, error) {
	res, err := y.command().
		DumpSingleJSON().
		SkipDownload().
		Format(audioFormat).
		ExtractorArgs(youtubeExtractor).
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	info, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		return nil, err
	}
	return info.metadata(), nil
}

func (y *YTDLP) Materialize(ctx context.Context, url, outputBase string) (*Download, error) {
	res, err := y.command().
		DumpJSON().
		NoSimulate().
		Format(audioFormat).
		ExtractorArgs(youtubeExtractor).
		WriteThumbnail().
		Output(outputBase+".%(ext)s").
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp download: %w", err)
	}
	info, err := parseInfo(lastJSONLine(res.Stdout))
	if err != nil {
		return nil, err
	}

	audio, thumb := LocateFiles(outputBase)
	if audio == "" {
		return nil, fmt.Errorf("yt-dlp produced no audio file for %s", outputBase)
	}
	y.log.Debugf("Downloaded %q to %s", info.Title, audio)
	return info.download(audio, thumb), nil
}

// ResolveExecutable picks the yt-dlp binary: an explicit path, then PATH,
// then a managed install when autoInstall is set.
func ResolveExecutable(ctx context.Context, path string, autoInstall bool) (string, error) {
	if path != "" {
		return path, nil
	}
	if found, err := exec.LookPath("yt-dlp"); err == nil {
		return found, nil
	}
	if !autoInstall {
		return "", fmt.Errorf("yt-dlp not found in PATH and auto-install disabled")
	}
	installed, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("installing yt-dlp: %w", err)
	}
	return installed.Executable, nil
}
