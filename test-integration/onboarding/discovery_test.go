package integration

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/hass-onboard/internal/discovery"
	"github.com/stacklok/hass-onboard/internal/events"
	"github.com/stacklok/hass-onboard/test-integration/onboarding/helpers"
)

var _ = Describe("Discovery Session", Label("discovery"), func() {
	var (
		tempDir string
		store   events.Store
	)

	BeforeEach(func() {
		tempDir = createTempDir("discovery-test-")
		store = events.NewFileStore(filepath.Join(tempDir, "events.jsonl"))
	})

	AfterEach(func() {
		cleanupTempDir(tempDir)
	})

	Context("Collecting announcements for the window", func() {
		It("should hand over the valid instances sorted by name", func() {
			svc := helpers.NewScriptedService(
				helpers.Announcement("Office", "http://office.local:8123", "2024.10.1", 8123),
				helpers.BrokenAnnouncement("mystery"),
				helpers.Announcement("Attic", "http://attic.local:8123", "2024.9.0", 8123),
				helpers.Announcement("Garage", "http://garage.local:8123", "2024.10.1", 8123),
			)
			collector := discovery.NewCollector(svc,
				discovery.WithWindow(300*time.Millisecond),
				discovery.WithEventSink(store),
			)

			instances, err := collector.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(instances))
			for _, info := range instances {
				names = append(names, info.LocationName)
			}
			Expect(names).To(Equal([]string{"Attic", "Garage", "Office"}))
			Expect(instances[0].Host).To(Equal("homeassistant.local"))
			Expect(instances[0].Port).To(Equal(8123))

			By("recording the unparseable announcement in the event log")
			logged, err := store.Events(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(logged).To(HaveLen(1))
			Expect(logged[0].Text).To(Equal(discovery.UnparseableEventText))
			Expect(logged[0].Payload).To(HaveKeyWithValue("name", "mystery"))

			By("stopping the service before starting it and again when the window closed")
			Expect(svc.Calls()).To(Equal([]string{
				"StopBrowse", "StopAdvertise",
				"StartBrowse", "StartAdvertise",
				"StopBrowse", "StopAdvertise",
			}))
		})

		It("should never call the continuation when the session is ended early", func() {
			svc := helpers.NewScriptedService(
				helpers.Announcement("Office", "http://office.local:8123", "2024.10.1", 8123),
			)
			collector := discovery.NewCollector(svc, discovery.WithWindow(time.Hour))

			completed := make(chan []discovery.Info, 1)
			Expect(collector.StartSession(ctx, func(list []discovery.Info) {
				completed <- list
			})).To(Succeed())

			collector.EndSession()
			Consistently(completed, 200*time.Millisecond).ShouldNot(Receive())
			Expect(svc.Calls()).To(HaveLen(6))
		})
	})
})
