//go:build linux

package wifi_test

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wlanctl/wifi"
	"github.com/wlanctl/wifi/dot11"
)

func TestIntegrationLinuxSharedClient(t *testing.T) {
	const (
		workers = 4
		rounds  = 50
	)

	c, stations := integrationStations(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]int)
		errs []error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				for _, ifi := range stations {
					_, err := c.AccessPoints(ifi)

					mu.Lock()
					if err != nil {
						errs = append(errs, err)
					} else {
						seen[ifi.Name]++
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs, "scan result dumps must not fail under concurrency")
	for _, ifi := range stations {
		assert.Equal(t, workers*rounds, seen[ifi.Name], "dumps of %s", ifi.Name)
	}
}

func TestIntegrationLinuxAccessPointElements(t *testing.T) {
	c, stations := integrationStations(t)
	codec := dot11.NewCodec()

	for _, ifi := range stations {
		bsss, err := c.AccessPoints(ifi)
		require.NoError(t, err, "access points for %s", ifi.Name)

		for _, b := range bsss {
			t.Logf("%s: %s %q channel %d %s, elements %s (%d skipped)",
				ifi.Name, b.BSSID, b.SSID, b.Channel(), b.Status, b.Outcome.Status, b.Outcome.Skipped)

			if b.Elements == nil {
				assert.Equal(t, dot11.StatusFatal, b.Outcome.Status, "%s: nil elements", b.BSSID)
				continue
			}

			// Whatever survived decoding must pack and decode again. Only
			// beacon elements carry a TIM.
			ft := dot11.FrameProbeResponse
			if b.Elements.TIM != nil {
				ft = dot11.FrameBeacon
			}
			ies, err := codec.PackElements(ft, b.Elements)
			if !assert.NoError(t, err, "%s: repack", b.BSSID) {
				continue
			}
			_, o, err := codec.UnpackElements(ft, ies)
			assert.NoError(t, err, "%s: decode of repacked elements", b.BSSID)
			assert.NotEqual(t, dot11.StatusFatal, o.Status, "%s: decode of repacked elements", b.BSSID)
		}
	}
}

func TestIntegrationLinuxDeadlines(t *testing.T) {
	c, stations := integrationStations(t)

	require.NoError(t, c.SetDeadline(time.Now().Add(10*time.Second)), "set deadline")
	require.NoError(t, c.SetReadDeadline(time.Now().Add(10*time.Second)), "set read deadline")
	require.NoError(t, c.SetWriteDeadline(time.Now().Add(10*time.Second)), "set write deadline")

	phys, err := c.PHYs()
	require.NoError(t, err, "list PHYs before deadline")
	require.NotEmpty(t, phys, "station interfaces imply at least one PHY")

	for _, ifi := range stations {
		p, err := c.PHY(ifi)
		require.NoError(t, err, "PHY of %s", ifi.Name)
		assert.Equal(t, ifi.PHY, p.Index, "PHY index of %s", ifi.Name)

		if _, err := p.Capabilities(ifi.Frequency); err != nil {
			t.Logf("%s: PHY %d capabilities unusable: %v", ifi.Name, p.Index, err)
		}
	}

	// An expired deadline fails the next request; clearing it recovers.
	require.NoError(t, c.SetDeadline(time.Now().Add(-time.Second)), "expire deadline")
	_, err = c.PHYs()
	assert.Error(t, err, "list PHYs after deadline")

	require.NoError(t, c.SetDeadline(time.Time{}), "clear deadline")
	_, err = c.PHYs()
	assert.NoError(t, err, "list PHYs after clearing deadline")
}

// integrationStations returns a client and the station interfaces it can
// see, skipping the test when there is no nl80211 or no WiFi hardware.
func integrationStations(t *testing.T) (*wifi.Client, []*wifi.Interface) {
	t.Helper()

	c, err := wifi.New()
	if errors.Is(err, os.ErrNotExist) {
		t.Skipf("skipping, nl80211 not found: %v", err)
	}
	require.NoError(t, err, "create client")
	t.Cleanup(func() { _ = c.Close() })

	ifis, err := c.Interfaces()
	require.NoError(t, err, "list interfaces")

	var stations []*wifi.Interface
	for _, ifi := range ifis {
		if ifi.Name != "" && ifi.Type == wifi.InterfaceTypeStation {
			stations = append(stations, ifi)
		}
	}
	if len(stations) == 0 {
		t.Skip("skipping, found no WiFi station interfaces")
	}

	return c, stations
}
