// Command broker-scheduler launches the Mesos framework scheduler that
// keeps a declared fleet of brokers running against the cluster's resource
// offers.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"
	sched "github.com/mesos/mesos-go/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesosphere/kafka-mesos/internal/adminhttp"
	"github.com/mesosphere/kafka-mesos/internal/artifactserver"
	"github.com/mesosphere/kafka-mesos/internal/broker"
	"github.com/mesosphere/kafka-mesos/internal/cluster"
	"github.com/mesosphere/kafka-mesos/internal/clusterstore"
	"github.com/mesosphere/kafka-mesos/internal/config"
	"github.com/mesosphere/kafka-mesos/internal/driveradapter"
	"github.com/mesosphere/kafka-mesos/internal/readiness"
	"github.com/mesosphere/kafka-mesos/internal/reconciler"
	"github.com/mesosphere/kafka-mesos/internal/taskbuilder"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "broker-scheduler",
		Short: "Schedules a fleet of broker processes onto a Mesos cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("broker-scheduler: reading config file: %w", err)
				}
			}
			return run(config.LoadScheduler(v))
		},
	}

	flags := root.PersistentFlags()
	flags.String("master", "zk://localhost:2181/mesos", "Mesos master connection string")
	flags.String("zk-connect", "", "ZooKeeper connection string for cluster state (empty disables ZK persistence)")
	flags.String("brokers-file", "brokers.yaml", "path to the declared broker fleet YAML file")
	flags.String("artifact-dir", ".", "directory the executor and distribution artifacts are served from")
	flags.String("artifact-address", "localhost", "address advertised to executors for fetching artifacts")
	flags.Int("artifact-port", 9090, "port the artifact HTTP server listens on")
	flags.Int("admin-port", 9091, "port the admin HTTP interface listens on")
	flags.String("executor-jar", "kafka-executor.jar", "path to the executor jar, relative to artifact-dir")
	flags.String("distribution", "kafka.tgz", "path to the Kafka distribution archive, relative to artifact-dir")
	flags.String("state-path", "", "local file path for the cluster snapshot (used when zk-connect is empty)")
	flags.Int("readiness-workers", 4, "number of concurrent readiness-probe workers")
	flags.Duration("readiness-timeout", 5*time.Second, "per-probe readiness timeout")
	flags.Bool("debug", false, "pass -debug to launched executors")
	flags.String("config", "", "optional YAML config file to read flag defaults from")

	if err := v.BindPFlags(flags); err != nil {
		log.Fatalf("broker-scheduler: binding flags: %v", err)
	}
	v.SetEnvPrefix("broker_scheduler")
	v.AutomaticEnv()

	if err := root.Execute(); err != nil {
		log.Fatalf("broker-scheduler: %v", err)
	}
}

func run(cfg config.Scheduler) error {
	var store clusterstore.Store
	if cfg.ZKConnect != "" {
		zkStore, err := clusterstore.NewZKStore([]string{cfg.ZKConnect}, "/kafka-mesos/state", 10*time.Second)
		if err != nil {
			return fmt.Errorf("broker-scheduler: connecting cluster store to zookeeper: %w", err)
		}
		defer zkStore.Close()
		store = zkStore
	} else if cfg.StatePath != "" {
		store = clusterstore.NewFileStore(cfg.StatePath)
	}

	cl := cluster.New(store)
	if err := cl.Load(true); err != nil {
		return fmt.Errorf("broker-scheduler: loading cluster state: %w", err)
	}

	bf, err := config.LoadBrokersFile(cfg.BrokersFile)
	if err != nil {
		return fmt.Errorf("broker-scheduler: loading brokers file: %w", err)
	}
	for _, spec := range bf.Brokers {
		if _, ok := cl.GetBroker(spec.ID); ok {
			continue // restored from a prior snapshot, declared state already current
		}
		b := broker.New(spec.ID, spec.CPUs, spec.MemMB, spec.HeapMB, spec.Options, spec.Failover.ToPolicy())
		if err := cl.AddBroker(b); err != nil {
			return fmt.Errorf("broker-scheduler: declaring broker %s: %w", spec.ID, err)
		}
	}

	executorURI, err := artifactserver.Serve("executor", filepath.Join(cfg.ArtifactDir, cfg.ExecutorJarPath), cfg.ArtifactAddress, cfg.ArtifactPort)
	if err != nil {
		return fmt.Errorf("broker-scheduler: serving executor artifact: %w", err)
	}
	distURI, err := artifactserver.Serve("kafka", filepath.Join(cfg.ArtifactDir, cfg.DistributionPath), cfg.ArtifactAddress, cfg.ArtifactPort)
	if err != nil {
		return fmt.Errorf("broker-scheduler: serving distribution artifact: %w", err)
	}

	prober := readiness.New(cfg.ReadinessWorkers, cfg.ReadinessTimeout)

	taskCfg := taskbuilder.Config{
		ExecutorJarURI:   executorURI,
		DistributionURI:  distURI,
		ZookeeperConnect: cfg.ZKConnect,
		Debug:            cfg.Debug,
	}
	rec := reconciler.New(cl, taskCfg, prober)

	go func() {
		for res := range prober.Results() {
			rec.HandleReadiness(res)
		}
	}()

	go adminhttp.New(rec, cfg.AdminPort).Serve()

	adapter := driveradapter.New(rec)
	driverCfg := sched.DriverConfig{
		Scheduler: adapter,
		Framework: &mesos.FrameworkInfo{
			Name: proto.String("kafka-mesos"),
			User: proto.String(""),
		},
		Master: cfg.Master,
	}

	driver, err := sched.NewMesosSchedulerDriver(driverCfg)
	if err != nil {
		return fmt.Errorf("broker-scheduler: creating scheduler driver: %w", err)
	}

	status, err := driver.Run()
	if err != nil {
		return fmt.Errorf("broker-scheduler: driver exited with error: %w", err)
	}
	log.Infof("broker-scheduler: driver stopped with status %v", status)

	prober.Close(cfg.ReadinessTimeout)

	if status != mesos.Status_DRIVER_STOPPED {
		os.Exit(1)
	}
	return nil
}
