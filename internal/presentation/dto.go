package presentation

import (
	"time"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/domain/registry"
)

// EntryDTO represents a registered entry for presentation
type EntryDTO struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	SourcePath string `json:"source_path,omitempty"`
	Versions   int    `json:"versions"`
}

// VersionDTO represents one archived version
type VersionDTO struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

// HistoryDTO represents an entry's version log and undo/redo depths
type HistoryDTO struct {
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	SourcePath string       `json:"source_path,omitempty"`
	CurrentKey string       `json:"current_key,omitempty"`
	Versions   []VersionDTO `json:"versions"` // always present, oldest first
	UndoDepth  int          `json:"undo_depth"`
	RedoDepth  int          `json:"redo_depth"`
}

// ArtifactDTO represents a stored artifact without its payload
type ArtifactDTO struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// FromSnapshot converts a domain snapshot to a DTO.
func FromSnapshot(s registry.Snapshot) HistoryDTO {
	versions := make([]VersionDTO, len(s.Versions))
	for i, v := range s.Versions {
		versions[i] = VersionDTO{
			Key:       v.Key,
			CreatedAt: v.CreatedAt.UTC(),
			Current:   v.Key == s.CurrentKey,
		}
	}
	return HistoryDTO{
		Name:       s.Name,
		Kind:       s.Kind.String(),
		SourcePath: s.SourcePath,
		CurrentKey: s.CurrentKey,
		Versions:   versions,
		UndoDepth:  s.UndoDepth,
		RedoDepth:  s.RedoDepth,
	}
}

// EntryFromSnapshot summarizes a snapshot for listings.
func EntryFromSnapshot(s registry.Snapshot) EntryDTO {
	return EntryDTO{
		Name:       s.Name,
		Kind:       s.Kind.String(),
		SourcePath: s.SourcePath,
		Versions:   len(s.Versions),
	}
}

// FromArtifactInfos converts store listings to DTOs.
func FromArtifactInfos(infos []artifact.Info) []ArtifactDTO {
	dtos := make([]ArtifactDTO, len(infos))
	for i, info := range infos {
		dtos[i] = ArtifactDTO{Key: info.Key, Size: info.Size, CreatedAt: info.CreatedAt.UTC()}
	}
	return dtos
}

// HistoryFromArtifacts builds a history for an entry that is not loaded,
// from the version artifacts found in the store. The newest is current.
func HistoryFromArtifacts(name string, infos []artifact.Info) HistoryDTO {
	h := HistoryDTO{Name: name, Kind: "unloaded", Versions: make([]VersionDTO, 0, len(infos))}
	for _, info := range infos {
		_, t, ok := artifact.ParseVersionKey(info.Key)
		if !ok {
			continue
		}
		h.Versions = append(h.Versions, VersionDTO{Key: info.Key, CreatedAt: t.UTC()})
	}
	if n := len(h.Versions); n > 0 {
		h.Versions[n-1].Current = true
		h.CurrentKey = h.Versions[n-1].Key
	}
	return h
}

// HistoryFromLog builds a history for an entry that is not loaded from its
// persisted version log. The last version is current.
func HistoryFromLog(name string, versions []registry.Version) HistoryDTO {
	snap := registry.Snapshot{Name: name, Versions: versions}
	if n := len(versions); n > 0 {
		snap.CurrentKey = versions[n-1].Key
	}
	h := FromSnapshot(snap)
	h.Kind = "unloaded"
	return h
}
