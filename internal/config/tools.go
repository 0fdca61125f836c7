package config

import (
	"github.com/RinkyDinkyNooble/AudioMorph/internal/platform"
)

// ResolvedTools holds absolute tool paths. Empty means not found.
type ResolvedTools struct {
	FFmpeg  string
	FFprobe string
	YTDLP   string
}

// ResolveTools locates the media tools: explicit configuration first, then
// the bundled assets directory next to baseDir, then PATH.
func (c ToolsConfig) ResolveTools(baseDir string) ResolvedTools {
	return ResolvedTools{
		FFmpeg:  platform.FindExecutable(platform.FFmpegTool, c.FFmpeg, baseDir),
		FFprobe: platform.FindExecutable(platform.FFprobeTool, c.FFprobe, baseDir),
		YTDLP:   platform.FindExecutable(platform.YTDLPTool, c.YTDLP, baseDir),
	}
}
