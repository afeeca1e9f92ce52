package supervisor

import (
	"encoding/json"

	"github.com/mattbaird/jsonpatch"
	"github.com/sirupsen/logrus"

	"github.com/xcjail/xc/models"
)

// ManifestChan is a single-slot watch channel: a send always overwrites
// any value that hasn't yet been consumed, so subscribers observe
// at-least-the-latest snapshot rather than every intermediate one — the
// same non-blocking-send idiom used for fan-out elsewhere in the corpus,
// narrowed to one slot instead of one channel per subscriber.
type ManifestChan chan models.ContainerManifest

// newManifestChan returns a single-slot manifest channel.
func newManifestChan() ManifestChan { return make(ManifestChan, 1) }

// publisher owns the manifest watch channel and the previous snapshot,
// used only to produce a debug-level diff of what changed.
type publisher struct {
	ch       ManifestChan
	previous *models.ContainerManifest
	log      *logrus.Entry
}

func newPublisher(log *logrus.Entry) *publisher {
	return &publisher{ch: newManifestChan(), log: log}
}

// publish overwrites the watch channel's slot with the latest manifest
// and, at debug level, logs a JSON patch against the previous snapshot.
func (p *publisher) publish(m models.ContainerManifest) {
	if p.log.Logger.IsLevelEnabled(logrus.DebugLevel) && p.previous != nil {
		if patch := p.diff(*p.previous, m); patch != "" {
			p.log.WithField("patch", patch).Debug("manifest changed")
		}
	}
	snap := m.Clone()
	p.previous = &snap

	select {
	case <-p.ch:
	default:
	}
	select {
	case p.ch <- m:
	default:
	}
}

func (p *publisher) diff(before, after models.ContainerManifest) string {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return ""
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return ""
	}
	patch, err := jsonpatch.CreatePatch(beforeJSON, afterJSON)
	if err != nil || len(patch) == 0 {
		return ""
	}
	out, err := json.Marshal(patch)
	if err != nil {
		return ""
	}
	return string(out)
}
