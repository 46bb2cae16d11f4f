package nfs3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/mount"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/transport"
)

// ErrPortNotRegistered is returned when the portmapper has no TCP mapping
// for a program.
var ErrPortNotRegistered = errors.New("program not registered with portmapper")

// MountError is a non-OK MNT status.
type MountError struct {
	Path   string
	Status uint32
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s: %s", e.Path, mount.StatusString(e.Status))
}

// DialConfig describes how to reach an export.
type DialConfig struct {
	// Host is the server host name or address.
	Host string `mapstructure:"host"`

	// Export is the exported path passed to MNT.
	Export string `mapstructure:"export"`

	// NFSPort and MountPort skip the portmapper lookup for that program when
	// non-zero.
	NFSPort   int `mapstructure:"nfs_port"`
	MountPort int `mapstructure:"mount_port"`

	// PortmapPort is the portmapper port; zero selects 111.
	PortmapPort int `mapstructure:"portmap_port"`

	// Transport is the template for every connection; Address is filled in.
	Transport transport.Config `mapstructure:"-"`

	// Credentials are sent with every call; nil sends AUTH_NONE.
	Credentials rpc.Credentials `mapstructure:"-"`
}

// Dial resolves the server ports, mounts the export and returns a Store on a
// dedicated NFS connection. The store's Close unmounts and disconnects.
func Dial(ctx context.Context, config DialConfig, metrics transport.Metrics) (*Store, error) {
	if config.Host == "" {
		return nil, errors.New("nfs3: host is required")
	}
	if config.Export == "" {
		config.Export = "/"
	}

	mountPort, nfsPort := config.MountPort, config.NFSPort
	if mountPort == 0 || nfsPort == 0 {
		var err error
		if mountPort, nfsPort, err = lookupPorts(ctx, config, mountPort, nfsPort); err != nil {
			return nil, err
		}
	}

	root, err := mountExport(ctx, config, mountPort)
	if err != nil {
		return nil, err
	}

	nfsConfig := config.Transport
	nfsConfig.Address = net.JoinHostPort(config.Host, strconv.Itoa(nfsPort))
	client, err := transport.New(nfsConfig, metrics)
	if err != nil {
		return nil, err
	}

	s := New(client, root, config.Credentials)
	s.closeFn = func() error {
		var result *multierror.Error
		if err := unmountExport(context.Background(), config, mountPort); err != nil {
			result = multierror.Append(result, err)
		}
		if err := client.Shutdown(); err != nil {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}

	logger.Info("Mounted %s:%s (mount port %d, nfs port %d)", config.Host, config.Export, mountPort, nfsPort)
	return s, nil
}

// withClient runs fn on a short-lived connection to port.
func withClient(config DialConfig, port int, fn func(*transport.Client) error) error {
	clientConfig := config.Transport
	clientConfig.Address = net.JoinHostPort(config.Host, strconv.Itoa(port))
	client, err := transport.New(clientConfig, nil)
	if err != nil {
		return err
	}
	defer func() { _ = client.Shutdown() }()
	return fn(client)
}

func lookupPorts(ctx context.Context, config DialConfig, mountPort, nfsPort int) (int, int, error) {
	port := config.PortmapPort
	if port == 0 {
		port = mount.PortmapPort
	}

	err := withClient(config, port, func(client *transport.Client) error {
		if mountPort == 0 {
			p, err := getPort(ctx, client, rpc.ProgramMount, rpc.MountVersion)
			if err != nil {
				return err
			}
			mountPort = p
		}
		if nfsPort == 0 {
			p, err := getPort(ctx, client, rpc.ProgramNFS, rpc.NFSVersion)
			if err != nil {
				return err
			}
			nfsPort = p
		}
		return nil
	})
	return mountPort, nfsPort, err
}

// getPort asks the portmapper for the TCP port of program/version.
func getPort(ctx context.Context, client *transport.Client, program, version uint32) (int, error) {
	args, err := (&mount.Mapping{Program: program, Version: version, Protocol: mount.ProtoTCP}).Encode()
	if err != nil {
		return 0, err
	}
	reply, err := client.Service(ctx, rpc.ProgramPortmap, rpc.PortmapVersion, mount.PortmapProcGetPort, args, rpc.NullAuth{})
	if err != nil {
		return 0, fmt.Errorf("portmap GETPORT %d v%d: %w", program, version, err)
	}
	resp, err := mount.DecodeGetPortResponse(reply.Data)
	if err != nil {
		return 0, fmt.Errorf("decode GETPORT reply: %w", err)
	}
	if resp.Port == 0 {
		return 0, fmt.Errorf("%w: %d v%d", ErrPortNotRegistered, program, version)
	}
	logger.Debug("Portmap: program %d v%d on port %d", program, version, resp.Port)
	return int(resp.Port), nil
}

func mountExport(ctx context.Context, config DialConfig, port int) ([]byte, error) {
	args, err := (&mount.MountRequest{DirPath: config.Export}).Encode()
	if err != nil {
		return nil, err
	}

	var root []byte
	err = withClient(config, port, func(client *transport.Client) error {
		reply, err := client.Service(ctx, rpc.ProgramMount, rpc.MountVersion, mount.MountProcMnt, args, config.Credentials)
		if err != nil {
			return fmt.Errorf("mount %s: %w", config.Export, err)
		}
		resp, err := mount.DecodeMountResponse(reply.Data)
		if err != nil {
			return fmt.Errorf("decode MNT reply: %w", err)
		}
		if resp.Status != mount.MountOK {
			return &MountError{Path: config.Export, Status: resp.Status}
		}
		root = resp.FileHandle
		return nil
	})
	return root, err
}

func unmountExport(ctx context.Context, config DialConfig, port int) error {
	args, err := (&mount.MountRequest{DirPath: config.Export}).Encode()
	if err != nil {
		return err
	}
	return withClient(config, port, func(client *transport.Client) error {
		if _, err := client.Service(ctx, rpc.ProgramMount, rpc.MountVersion, mount.MountProcUmnt, args, config.Credentials); err != nil {
			return fmt.Errorf("unmount %s: %w", config.Export, err)
		}
		return nil
	})
}
