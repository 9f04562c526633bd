package qrcode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	goqrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

// Size is the edge length of generated QR images in pixels.
const Size = 256

// Store persists encoded QR images.
type Store interface {
	WriteQR(ctx context.Context, name string, data []byte) (string, error)
}

// IPResolver reports the address other devices on the LAN can reach us at.
type IPResolver func() (string, error)

// Options configures a Generator.
type Options struct {
	// PublicHost overrides IP discovery when set.
	PublicHost string
	Port       int
	Resolver   IPResolver
}

// Generator encodes download links for enhanced artifacts as QR images.
type Generator struct {
	store      Store
	publicHost string
	port       int
	resolve    IPResolver
	logger     *zap.Logger
}

// NewGenerator falls back to OutboundIP when opts.Resolver is nil.
func NewGenerator(store Store, opts Options, logger *zap.Logger) *Generator {
	resolve := opts.Resolver
	if resolve == nil {
		resolve = OutboundIP
	}
	return &Generator{
		store:      store,
		publicHost: opts.PublicHost,
		port:       opts.Port,
		resolve:    resolve,
		logger:     logger.Named("qrcode"),
	}
}

// DownloadURL builds the LAN link that serves artifact.
func (g *Generator) DownloadURL(artifact string) (string, error) {
	host := g.publicHost
	if host == "" {
		ip, err := g.resolve()
		if err != nil {
			return "", fmt.Errorf("resolve local address: %w", err)
		}
		host = ip
	}
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(g.port)),
		Path:   "/enhanced_images/" + artifact,
	}
	return u.String(), nil
}

// Generate writes qr_<artifact> pointing at the artifact's download URL and
// returns the QR filename.
func (g *Generator) Generate(ctx context.Context, artifact string) (string, error) {
	link, err := g.DownloadURL(artifact)
	if err != nil {
		return "", err
	}
	png, err := goqrcode.Encode(link, goqrcode.Medium, Size)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}

	name := domain.QRFilename(artifact)
	if _, err := g.store.WriteQR(ctx, name, png); err != nil {
		return "", err
	}
	g.logger.Info("qr code generated", zap.String("qr_code_filename", name), zap.String("url", link))
	return name, nil
}

// OutboundIP returns the local address the kernel would route public traffic
// through. UDP dial sends no packets.
func OutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", errors.New("no local udp address")
	}
	return addr.IP.String(), nil
}
