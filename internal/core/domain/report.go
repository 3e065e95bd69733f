package domain

import (
	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/carlmjohnson/versioninfo"
)

// ReportInfo is the tool metadata attached to every run record.
type ReportInfo struct {
	Tool          string `json:"tool"`
	ToolVersion   string `json:"tool_version"`
	EngineVersion string `json:"engine_version"`
}

func NewReportInfo() ReportInfo {
	return ReportInfo{
		Tool:          "der1547eval",
		ToolVersion:   versioninfo.Short(),
		EngineVersion: p1547.Version,
	}
}
