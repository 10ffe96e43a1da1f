package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/config"
	"github.com/mogaika/assetpipe/pipeline"
	"github.com/mogaika/assetpipe/scene"
	"github.com/mogaika/assetpipe/status"
	"github.com/mogaika/assetpipe/utils"
	"github.com/mogaika/assetpipe/web"

	_ "github.com/mogaika/assetpipe/formats/accessory"
	_ "github.com/mogaika/assetpipe/formats/cnt"
	_ "github.com/mogaika/assetpipe/formats/fbx"
	_ "github.com/mogaika/assetpipe/formats/gltf"
	_ "github.com/mogaika/assetpipe/formats/mat"
	_ "github.com/mogaika/assetpipe/formats/obj"
	_ "github.com/mogaika/assetpipe/formats/setup"
	_ "github.com/mogaika/assetpipe/formats/structure"
	_ "github.com/mogaika/assetpipe/formats/texture"
	_ "github.com/mogaika/assetpipe/formats/vehiclecfg"
)

func main() {
	var configPath, addr, root, webPath, cs string
	var convert, out, handed string
	var batch, pattern, dump, preload string
	var watch bool
	var scale float64
	flag.StringVar(&configPath, "config", "", "Path to yaml or toml config")
	flag.StringVar(&addr, "i", "", "Address of server (overrides config)")
	flag.StringVar(&root, "root", "", "Asset root served by the web front end (overrides config)")
	flag.StringVar(&webPath, "web", "web", "Path to folder with static web data")
	flag.StringVar(&cs, "cs", "", "Scene coordinate system: native, left or right (overrides config)")
	flag.StringVar(&convert, "convert", "", "Convert this file to -out and exit")
	flag.StringVar(&out, "out", "", "Output path for -convert, its extension picks the exporter")
	flag.StringVar(&handed, "handed", "", "Handedness of the converted file, codec default if empty")
	flag.Float64Var(&scale, "scale", 1, "Uniform scale applied on -convert")
	flag.StringVar(&batch, "batch", "", "Import every file under this folder matching -pattern and exit")
	flag.StringVar(&pattern, "pattern", "*", "File name pattern for -batch")
	flag.StringVar(&dump, "dump", "", "Print decoded contents of a file and exit")
	flag.StringVar(&preload, "load", "", "Comma separated models to load before serving")
	flag.BoolVar(&watch, "watch", false, "Drop cached assets when files under the asset root change")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}
	if root != "" {
		cfg.AssetRoot = root
	}
	if cs != "" {
		cfg.CoordinateSystem = cs
	}
	if err := cfg.Apply(); err != nil {
		log.Fatal(err)
	}
	sceneCs, err := asset.ParseCoordinateSystem(cfg.CoordinateSystem)
	if err != nil {
		log.Fatal(err)
	}

	s := scene.New(nil, sceneCs)
	s.Subscribe(scene.ObserverFuncs{
		Progress: func(msg string) { log.Printf("[main] %s", msg) },
		Error:    func(err error) { log.Printf("[main] error: %v", err) },
		Warning:  func(err error) { log.Printf("[main] warning: %v", err) },
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case dump != "":
		err = dumpFile(s, dump)
	case convert != "":
		err = convertFile(s, convert, out, handed, scale)
	case batch != "":
		var result scene.BatchResult
		result, err = s.ProcessAll(ctx, batch, pattern)
		log.Printf("[main] %v", result)
	default:
		err = serve(ctx, s, cfg, webPath, preload, watch)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func dumpFile(s *scene.Manager, path string) error {
	imp, err := s.Registry.Detect(path)
	if err != nil {
		return err
	}
	a, err := scene.Load[asset.Asset](s, imp, filepath.Base(path), filepath.Dir(path), false)
	if err != nil {
		return err
	}
	utils.Dump(a)
	return nil
}

func convertFile(s *scene.Manager, in, out, handed string, scale float64) error {
	if out == "" {
		flag.PrintDefaults()
		return nil
	}
	imp, err := s.Registry.Detect(in)
	if err != nil {
		return err
	}
	a, err := scene.Load[asset.Asset](s, imp, filepath.Base(in), filepath.Dir(in), false)
	if err != nil {
		return err
	}

	bag := pipeline.NewBag().Set(pipeline.SettingScale, scale)
	if handed != "" {
		bag.Set(pipeline.SettingHanded, handed)
	}
	settings, err := pipeline.SettingsFromBag(bag)
	if err != nil {
		return err
	}
	return s.Save(out, a, settings)
}

func serve(ctx context.Context, s *scene.Manager, cfg *config.Config, webPath, preload string, watch bool) error {
	if preload != "" {
		paths := strings.Split(preload, ",")
		for i := range paths {
			paths[i] = filepath.Join(cfg.AssetRoot, strings.TrimSpace(paths[i]))
		}
		result, err := s.LoadConcurrent(ctx, paths, asset.KindModel, cfg.Workers)
		if err != nil {
			return err
		}
		log.Printf("[main] preload: %v", result)
	}
	if watch {
		if err := s.Watch(ctx, cfg.AssetRoot); err != nil {
			return err
		}
	}

	hub := status.NewHub()
	defer hub.Close()

	srv := web.NewServer(s, hub, cfg.AssetRoot)
	srv.Vehicle = scene.VehicleOptions{
		Author:        cfg.Vehicle.Author,
		Website:       cfg.Vehicle.Website,
		TextureFormat: cfg.TextureFormat,
	}
	return srv.Start(cfg.ServerAddr, webPath)
}
