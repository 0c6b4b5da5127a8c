package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Paired title/description templates; index i of each belongs together.
var generatedTitles = []string{
	"Suspicious Network Traffic from External IP",
	"Unauthorized Access Attempt to Lab Database",
	"Malware Detected on Research Workstation",
	"Anomalous Data Transfer Activity",
	"Failed Authentication Attempts on Lab Equipment",
	"Unusual Outbound Network Connections",
	"Potential Data Exfiltration Detected",
	"Security Camera Tampering Alert",
	"Unauthorized Software Installation Detected",
	"Suspicious Email Attachment Opened",
	"Privilege Escalation Attempt Identified",
	"Network Intrusion Detection Alert",
	"Potential Insider Threat Activity",
	"Supply Chain Compromise Suspected",
	"Ransomware Indicators Detected",
}

var generatedDescriptions = []string{
	"Multiple connection attempts from unrecognized IP addresses originating from Eastern Europe. Pattern suggests automated scanning of network endpoints and lab equipment interfaces.",
	"Repeated failed login attempts detected on critical laboratory database systems. Attack pattern indicates credential stuffing or brute force attempts targeting research data.",
	"Antivirus software identified malicious code signatures on research workstation in Laboratory 3. Initial analysis suggests trojan horse designed to exfiltrate sensitive research data.",
	"Network monitoring detected large volume data transfers occurring during off-hours. Traffic patterns indicate potential unauthorized data export to external servers.",
	"Security logs show multiple failed authentication attempts on temperature-controlled storage units. Attempts appear coordinated and systematic in nature.",
	"Firewall alerts indicate unusual outbound connections to known command-and-control servers. Connections established from multiple internal systems simultaneously.",
	"Data loss prevention system flagged suspicious file access patterns. Multiple research files accessed and copied to external storage devices outside normal working hours.",
	"Physical security system reported tampering attempts on security cameras in restricted laboratory area. Video footage shows unauthorized access during maintenance window.",
	"Endpoint detection system identified unauthorized software installation on laboratory computer. Software appears to be remote access tool not approved for use.",
	"Email security gateway flagged suspicious attachment containing executable code. Attachment opened by staff member, triggering immediate security response.",
	"System logs reveal privilege escalation attempts on laboratory management servers. Attack vector suggests exploitation of known vulnerability in authentication system.",
	"Network intrusion detection system triggered alert for signature matching known APT (Advanced Persistent Threat) group tactics. Attack appears targeted at biotech infrastructure.",
	"User behavior analytics detected anomalous access patterns from employee account. Account accessed systems and data outside normal work hours and job function.",
	"Supply chain security audit revealed potential compromise in vendor equipment. Recent shipment of laboratory equipment contains unauthorized hardware modifications.",
	"Security monitoring detected ransomware-like behavior including file encryption patterns. Initial indicators suggest potential ransomware attack in early stages.",
}

var generatedSources = []string{
	"Network Security Monitor",
	"SIEM Alert System",
	"Endpoint Detection Response",
	"Lab Security System",
	"Employee Report",
	"Vendor Notification",
	"Incident Response Team",
	"Security Operations Center",
	"Data Loss Prevention",
	"Physical Security System",
}

// generationWindow bounds how far back generated report dates reach.
const generationWindow = 90

// generate builds count reports by cycling the templates. Titles after the
// first full cycle carry a " (n)" suffix so they stay distinguishable.
func (f *Fallback) generate(count int) []threat.Input {
	if count <= 0 {
		return []threat.Input{}
	}
	now := f.now()
	out := make([]threat.Input, 0, count)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < count; i++ {
		title := generatedTitles[i%len(generatedTitles)]
		if i >= len(generatedTitles) {
			title = fmt.Sprintf("%s (%d)", title, i+1)
		}
		daysAgo := f.rng.IntN(generationWindow)
		out = append(out, threat.Input{
			Title:       title,
			Description: generatedDescriptions[i%len(generatedDescriptions)],
			Date:        now.AddDate(0, 0, -daysAgo).Format(time.DateOnly),
			Source:      generatedSources[f.rng.IntN(len(generatedSources))],
		})
	}
	return out
}

// GeneratorWithFallback asks a real Generator first and uses the
// programmatic templates if it fails, returns nothing usable, or returns
// fewer reports than requested.
type GeneratorWithFallback struct {
	primary  Generator
	fallback *Fallback
	logger   *zap.Logger
	onFall   func(layer string)
	now      func() time.Time
}

// NewGeneratorWithFallback creates a generator. primary may be nil.
func NewGeneratorWithFallback(primary Generator, fallback *Fallback, logger *zap.Logger) *GeneratorWithFallback {
	return &GeneratorWithFallback{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// SetFallbackRecorder registers a callback invoked each time the fallback
// is used.
func (g *GeneratorWithFallback) SetFallbackRecorder(fn func(layer string)) {
	g.onFall = fn
}

// GenerateThreats returns exactly count reports with every field populated.
// It only fails when ctx is already done.
func (g *GeneratorWithFallback) GenerateThreats(ctx context.Context, count int) ([]threat.Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []threat.Input{}, nil
	}
	if g.primary != nil {
		items, err := g.primary.GenerateThreats(ctx, count)
		if err == nil && len(items) > 0 {
			out := RepairInputs(items, count, g.now())
			if short := count - len(out); short > 0 {
				g.logger.Warn("AI threat generation returned too few threats, topping up from fallback",
					zap.Int("requested", count), zap.Int("returned", len(out)))
				if g.onFall != nil {
					g.onFall(LayerGenerate)
				}
				out = append(out, g.fallback.generate(short)...)
			}
			return out, nil
		}
		if err == nil {
			err = fmt.Errorf("generator returned no threats")
		}
		g.logger.Warn("AI threat generation failed, using fallback", zap.Error(err))
		if g.onFall != nil {
			g.onFall(LayerGenerate)
		}
	}
	return g.fallback.generate(count), nil
}
