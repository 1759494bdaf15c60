package seeder

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// attacks start this long before now; noise is spread over the same span
const scenarioSpan = time.Hour

// Generate builds the events for scenario in datasetID. The same seed always
// yields the same events apart from their IDs.
func Generate(s Scenario, datasetID string, now time.Time) []*models.Event {
	g := &generator{
		faker:     gofakeit.New(s.Seed),
		datasetID: datasetID,
		start:     now.Add(-scenarioSpan).UTC().Truncate(time.Second),
	}

	for _, b := range s.BruteForce {
		g.bruteForce(b)
	}
	for _, w := range s.WebScans {
		g.webScan(w)
	}
	for _, a := range s.IDSAlerts {
		g.idsAlerts(a)
	}
	g.noise(s.Noise)

	return g.events
}

type generator struct {
	faker     *gofakeit.Faker
	datasetID string
	start     time.Time
	events    []*models.Event
}

func (g *generator) newEvent(source models.SourceType, at time.Time, srcIP string) *models.Event {
	e := &models.Event{
		ID:         uuid.NewString(),
		DatasetID:  g.datasetID,
		EventTime:  &at,
		SourceType: source,
		SrcIP:      srcIP,
		Extras:     map[string]any{"generator": "seeder"},
	}
	g.events = append(g.events, e)
	return e
}

func (g *generator) port() *int {
	p := g.faker.Number(1024, 65535)
	return &p
}

func (g *generator) bruteForce(spec BruteForceSpec) {
	user := spec.Username
	if user == "" {
		user = g.faker.Username()
	}
	host := g.faker.DomainName()
	sshPort := 22

	for i := 0; i < spec.Attempts; i++ {
		e := g.newEvent(models.SourceSIEMJSON, g.start.Add(spec.Offset+time.Duration(i)*spec.Spacing), spec.SourceIP)
		e.EventType = models.EventTypeLoginFailure
		e.Username = user
		e.Host = host
		e.DstIP = "10.0.0.10"
		e.SrcPort = g.port()
		e.DstPort = &sshPort
		e.Protocol = "ssh"
		e.SeverityHint = "medium"
		e.Message = fmt.Sprintf("Failed password for %s from %s", user, spec.SourceIP)
	}
}

func (g *generator) webScan(spec WebScanSpec) {
	errorCount := int(spec.ErrorRatio * float64(spec.Requests))
	ua := spec.ScannerUA
	if ua == "" {
		ua = g.faker.UserAgent()
	}

	for i := 0; i < spec.Requests; i++ {
		e := g.newEvent(models.SourceWebLog, g.start.Add(spec.Offset+time.Duration(i)*spec.Spacing), spec.SourceIP)
		status := 200
		if i < errorCount {
			status = 404
			e.EventType = models.EventTypeWeb404
		}
		if spec.ScannerUA != "" {
			e.EventType = models.EventTypeSuspiciousUA
		}
		size := int64(g.faker.Number(200, 20000))

		e.HTTPMethod = "GET"
		e.URLPath = fmt.Sprintf("/%s/%d", g.faker.Word(), i)
		e.HTTPStatus = &status
		e.UserAgent = ua
		e.ResponseSize = &size
		e.Host = "www.example.com"
	}
}

func (g *generator) idsAlerts(spec IDSAlertSpec) {
	source := models.SourceSuricata
	if spec.Sensor == "snort" {
		source = models.SourceSnort
	}
	count := spec.Count
	if count == 0 {
		count = 1
	}

	for i := 0; i < count; i++ {
		e := g.newEvent(source, g.start.Add(spec.Offset+time.Duration(i)*time.Second), spec.SourceIP)
		e.EventType = models.EventTypeIDSAlert
		e.DstIP = spec.DestIP
		e.Signature = spec.Signature
		e.SignatureID = fmt.Sprintf("%d", g.faker.Number(2000000, 2999999))
		e.Category = spec.Category
		e.Protocol = "TCP"
		e.SrcPort = g.port()
		if spec.Priority > 0 {
			p := spec.Priority
			e.IDSPriority = &p
		}
	}
}

// noise adds successful logins and ordinary page views, each from its own
// address so no rule fires on them.
func (g *generator) noise(spec NoiseSpec) {
	span := int(scenarioSpan / time.Second)

	for i := 0; i < spec.Logins; i++ {
		at := g.start.Add(time.Duration(g.faker.Number(0, span)) * time.Second)
		e := g.newEvent(models.SourceSIEMJSON, at, g.faker.IPv4Address())
		e.EventType = models.EventTypeLoginSuccess
		e.Username = g.faker.Username()
		e.Message = "Accepted publickey for " + e.Username
	}

	pages := []string{"/", "/index.html", "/about", "/products", "/contact", "/static/app.js"}
	for i := 0; i < spec.WebRequests; i++ {
		at := g.start.Add(time.Duration(g.faker.Number(0, span)) * time.Second)
		e := g.newEvent(models.SourceWebLog, at, g.faker.IPv4Address())
		status := 200
		size := int64(g.faker.Number(500, 50000))
		e.HTTPMethod = "GET"
		e.URLPath = g.faker.RandomString(pages)
		e.HTTPStatus = &status
		e.UserAgent = g.faker.UserAgent()
		e.ResponseSize = &size
		e.Host = "www.example.com"
	}
}
