package gocqldriver

import (
	"flag"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"

	"github.com/grafana/cqlexec/pkg/statement"
)

// Config for a Driver.
type Config struct {
	Addresses                string                `yaml:"addresses"`
	Port                     int                   `yaml:"port"`
	Keyspace                 string                `yaml:"keyspace"`
	Consistency              statement.Consistency `yaml:"consistency"`
	ProtoVersion             int                   `yaml:"protocol_version"`
	NumConnections           int                   `yaml:"num_connections"`
	Compression              string                `yaml:"compression"`
	DisableInitialHostLookup bool                  `yaml:"disable_initial_host_lookup"`
	SSL                      bool                  `yaml:"ssl"`
	HostVerification         bool                  `yaml:"host_verification"`
	CAPath                   string                `yaml:"ca_path"`
	CertPath                 string                `yaml:"tls_cert_path"`
	KeyPath                  string                `yaml:"tls_key_path"`
	Auth                     bool                  `yaml:"auth"`
	Username                 string                `yaml:"username"`
	Password                 flagext.Secret        `yaml:"password"`
	Timeout                  time.Duration         `yaml:"timeout"`
	ConnectTimeout           time.Duration         `yaml:"connect_timeout"`
	MaxPreparedStatements    int                   `yaml:"max_prepared_statements"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Consistency = statement.Quorum

	f.StringVar(&cfg.Addresses, "cassandra.addresses", "", "Comma-separated hostnames or IPs of Cassandra instances.")
	f.IntVar(&cfg.Port, "cassandra.port", 9042, "Port that Cassandra is running on")
	f.StringVar(&cfg.Keyspace, "cassandra.keyspace", "", "Keyspace to use in Cassandra.")
	f.Var(&cfg.Consistency, "cassandra.consistency", "Default consistency level for Cassandra.")
	f.IntVar(&cfg.ProtoVersion, "cassandra.protocol-version", 4, "Native protocol version to use.")
	f.IntVar(&cfg.NumConnections, "cassandra.num-connections", 2, "Number of connections per host.")
	f.StringVar(&cfg.Compression, "cassandra.compression", "", "Frame compression: 'snappy' or empty for none.")
	f.BoolVar(&cfg.DisableInitialHostLookup, "cassandra.disable-initial-host-lookup", false, "Instruct the cassandra driver to not attempt to get host info from the system.peers table.")
	f.BoolVar(&cfg.SSL, "cassandra.ssl", false, "Use SSL when connecting to cassandra instances.")
	f.BoolVar(&cfg.HostVerification, "cassandra.host-verification", true, "Require SSL certificate validation.")
	f.StringVar(&cfg.CAPath, "cassandra.ca-path", "", "Path to certificate file to verify the peer.")
	f.StringVar(&cfg.CertPath, "cassandra.tls-cert-path", "", "Path to certificate file used by TLS.")
	f.StringVar(&cfg.KeyPath, "cassandra.tls-key-path", "", "Path to private key file used by TLS.")
	f.BoolVar(&cfg.Auth, "cassandra.auth", false, "Enable password authentication when connecting to cassandra.")
	f.StringVar(&cfg.Username, "cassandra.username", "", "Username to use when connecting to cassandra.")
	f.Var(&cfg.Password, "cassandra.password", "Password to use when connecting to cassandra.")
	f.DurationVar(&cfg.Timeout, "cassandra.timeout", 2*time.Second, "Timeout when connecting to cassandra.")
	f.DurationVar(&cfg.ConnectTimeout, "cassandra.connect-timeout", 5*time.Second, "Initial connection timeout, used during initial dial to server.")
	f.IntVar(&cfg.MaxPreparedStatements, "cassandra.max-prepared-statements", 1000, "Number of prepared statements the driver keeps per session.")
}

// Validate the config.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Addresses) == "" {
		return errors.New("no cassandra addresses configured")
	}
	switch cfg.Compression {
	case "", "snappy":
	default:
		return errors.Errorf("unsupported compression %q", cfg.Compression)
	}
	if cfg.Auth && cfg.Username == "" {
		return errors.New("cassandra auth enabled without a username")
	}
	if (cfg.CertPath == "") != (cfg.KeyPath == "") {
		return errors.New("both tls-cert-path and tls-key-path must be set, or neither")
	}
	return nil
}

func (cfg *Config) cluster() (*gocql.ClusterConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(strings.Split(cfg.Addresses, ",")...)
	cluster.Port = cfg.Port
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocqlConsistency(cfg.Consistency, gocql.Quorum)
	cluster.ProtoVersion = cfg.ProtoVersion
	cluster.NumConns = cfg.NumConnections
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.MaxPreparedStmts = cfg.MaxPreparedStatements
	// Result metadata is needed on every response to notice schema drift.
	cluster.DisableSkipMetadata = true
	if cfg.Compression == "snappy" {
		cluster.Compressor = gocql.SnappyCompressor{}
	}
	cfg.setClusterConfig(cluster)
	return cluster, nil
}

// apply config settings to a cassandra ClusterConfig
func (cfg *Config) setClusterConfig(cluster *gocql.ClusterConfig) {
	cluster.DisableInitialHostLookup = cfg.DisableInitialHostLookup

	if cfg.SSL {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cfg.CAPath,
			CertPath:               cfg.CertPath,
			KeyPath:                cfg.KeyPath,
			EnableHostVerification: cfg.HostVerification,
		}
	}
	if cfg.Auth {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password.String(),
		}
	}
}

func gocqlConsistency(c statement.Consistency, def gocql.Consistency) gocql.Consistency {
	switch c {
	case statement.Any:
		return gocql.Any
	case statement.One:
		return gocql.One
	case statement.Two:
		return gocql.Two
	case statement.Three:
		return gocql.Three
	case statement.Quorum:
		return gocql.Quorum
	case statement.All:
		return gocql.All
	case statement.LocalQuorum:
		return gocql.LocalQuorum
	case statement.EachQuorum:
		return gocql.EachQuorum
	case statement.LocalOne:
		return gocql.LocalOne
	}
	return def
}

func gocqlSerialConsistency(c statement.SerialConsistency) (gocql.SerialConsistency, bool) {
	switch c {
	case statement.Serial:
		return gocql.Serial, true
	case statement.LocalSerial:
		return gocql.LocalSerial, true
	}
	return 0, false
}
