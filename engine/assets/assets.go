package assets

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-core/engine/assets/loaders"
	"github.com/spaghettifunk/anima-core/engine/assets/obj"
	"github.com/spaghettifunk/anima-core/engine/core"
	"github.com/spaghettifunk/anima-core/engine/renderer/metadata"
)

// Editors often write a file several times in a row; changes closer than this are merged.
const reloadDebounce = 100 * time.Millisecond

type AssetInfo struct {
	// Path relative to the asset root, with forward slashes.
	Name       string
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
	lastEvent  time.Time
}

type Options struct {
	Root      string
	Watch     bool
	InvertUVs bool
}

// AssetManager indexes the files under a root directory, loads them through the
// loader registered for their type and, when watching, reports changes on the event bus.
type AssetManager struct {
	root    string
	assets  map[string]*AssetInfo
	loaders map[metadata.ResourceType]Loader
	bus     *core.EventBus

	mutex sync.RWMutex

	watch    bool
	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

func NewAssetManager(opts Options, bus *core.EventBus) (*AssetManager, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, core.Wrap(err, core.ErrIO, "resolving asset root %s", opts.Root)
	}
	am := &AssetManager{
		root:    root,
		assets:  make(map[string]*AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
		bus:     bus,
		watch:   opts.Watch,
		done:    make(chan struct{}),
	}
	am.registerLoader(metadata.ResourceTypeMesh, &loaders.ModelLoader{Defaults: obj.Options{InvertUVs: opts.InvertUVs}})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	return am, nil
}

func (am *AssetManager) Initialize() error {
	info, err := os.Stat(am.root)
	if err != nil {
		return core.Wrap(err, core.ErrIO, "asset root %s", am.root)
	}
	if !info.IsDir() {
		return errors.Mark(errors.Newf("asset root %s is not a directory", am.root), core.ErrIO)
	}

	if am.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return core.Wrap(err, core.ErrIO, "creating file watcher")
		}
		am.fsnotify = w
	}

	if err := am.watchRecursive(am.root); err != nil {
		return err
	}

	if am.watch {
		am.wg.Add(1)
		go am.start()
	}
	core.LogInfo("asset manager indexed %d assets under %s", am.Count(), am.root)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Resolve returns the index entry for a name relative to the asset root.
func (am *AssetManager) Resolve(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	a, ok := am.assets[filepath.ToSlash(filepath.Clean(name))]
	if !ok {
		return AssetInfo{}, false
	}
	return *a, true
}

// LoadAsset loads an indexed asset using the loader registered for its type.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	key := filepath.ToSlash(filepath.Clean(name))

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		asset.LastLoaded = time.Now()
	}
	am.mutex.Unlock()
	if !exists {
		return nil, errors.Mark(errors.Newf("asset not found: %s", key), core.ErrIO)
	}

	loader, ok := am.loaders[asset.Type]
	if !ok {
		return nil, errors.Newf("no loader registered for asset type %s", asset.Type)
	}
	res, err := loader.Load(asset.Path, params)
	if err != nil {
		return nil, err
	}
	res.Name = key
	return res, nil
}

func (am *AssetManager) UnloadAsset(r *metadata.Resource) error {
	loader, ok := am.loaders[r.Type]
	if !ok {
		return nil
	}
	return loader.Unload(r)
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleWatchEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("watching %s: %s", e.Name, err)
			}
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if name, changed := am.handleFileEvent(e.Name); changed && am.bus != nil {
			am.bus.Fire(core.EventContext{
				Type: core.EVENT_CODE_ASSET_CHANGED,
				Data: &core.AssetEvent{Path: e.Name, Name: name},
			})
		}
	}
	// Can't stat a deleted path, so try both.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
		_ = am.fsnotify.Remove(e.Name)
	}
}

// watchRecursive indexes every file under path and, when watching, adds each directory.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if am.fsnotify != nil {
				if err := am.fsnotify.Add(walkPath); err != nil {
					return core.Wrap(err, core.ErrIO, "watching %s", walkPath)
				}
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes a created or modified file. It returns the asset name and
// whether the change should be reported.
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	assetType, ok := determineAssetType(path)
	if !ok {
		return "", false
	}
	name, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(name, "..") {
		return "", false
	}
	name = filepath.ToSlash(name)

	am.mutex.Lock()
	defer am.mutex.Unlock()

	now := time.Now()
	if a, exists := am.assets[name]; exists {
		if now.Sub(a.lastEvent) < reloadDebounce {
			return name, false
		}
		a.lastEvent = now
		return name, true
	}
	am.assets[name] = &AssetInfo{
		Name:      name,
		Path:      path,
		Type:      assetType,
		lastEvent: now,
	}
	return name, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	name, err := filepath.Rel(am.root, path)
	if err != nil {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, filepath.ToSlash(name))
}

func determineAssetType(path string) (metadata.ResourceType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return metadata.ResourceTypeImage, true
	case ".obj":
		return metadata.ResourceTypeMesh, true
	default:
		return 0, false
	}
}
