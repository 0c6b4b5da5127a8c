package store

import (
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

var sampleActions = []string{
	"Notify security team immediately",
	"Document all findings and actions taken",
	"Prepare incident report for management",
	"Coordinate with IT security for further investigation",
}

type sample struct {
	id       string
	daysAgo  int
	input    threat.Input
	risk     int
	category threat.Category
	summary  string
	conf     float64
	steps    []string
	priority threat.Priority
	impact   string
	insight  string
	related  []string
}

var samples = []sample{
	{
		id:      "threat-001",
		daysAgo: 5,
		input: threat.Input{
			Title:       "Suspicious Network Activity Detected",
			Description: "Multiple failed login attempts from unknown IP addresses originating from Eastern Europe. Pattern suggests automated scanning of lab equipment network endpoints.",
			Date:        "2024-01-15",
			Source:      "Network Security Monitor",
		},
		risk:     78,
		category: threat.CategoryDataExfiltration,
		summary:  "Detected potential data exfiltration targeting biotech infrastructure. Multiple connection attempts indicate reconnaissance phase of attack.",
		conf:     0.87,
		steps: []string{
			"Audit data access logs for unusual patterns",
			"Implement temporary network segmentation",
			"Review outbound network traffic for anomalies",
			"Verify data encryption on all storage systems",
		},
		priority: threat.PriorityHigh,
		impact:   "Risk of data loss or compromise",
		insight:  "This threat pattern aligns with recent industry-wide trends in biotech security. Similar incidents have been reported in 3 other facilities this quarter.",
		related:  []string{"threat-005", "threat-012"},
	},
	{
		id:      "threat-002",
		daysAgo: 6,
		input: threat.Input{
			Title:       "Unauthorized Access Attempt at Lab B",
			Description: "Badge reader detected unauthorized access attempt at Lab B entrance during off-hours. Security camera footage shows individual attempting to bypass card reader.",
			Date:        "2024-01-14",
			Source:      "Physical Security System",
		},
		risk:     85,
		category: threat.CategoryLabAccess,
		summary:  "Threat analysis indicates unauthorized lab access with moderate to high risk. Physical security breach attempt detected.",
		conf:     0.92,
		steps: []string{
			"Review physical access logs and badge records",
			"Check security camera footage for the timeframe",
			"Verify all personnel credentials are current",
			"Implement additional authentication requirements",
		},
		priority: threat.PriorityCritical,
		impact:   "Potential for significant operational disruption",
		insight:  "Advanced persistent threat (APT) characteristics detected in the attack vector. Threat actor methodology suggests state-sponsored activity.",
		related:  []string{"threat-008"},
	},
	{
		id:      "threat-003",
		daysAgo: 7,
		input: threat.Input{
			Title:       "Malware Signature Detected on Lab Equipment",
			Description: "Antivirus scan detected known biotech malware signature on sequencing equipment in Lab C. File appears to be embedded in firmware update package.",
			Date:        "2024-01-13",
			Source:      "Endpoint Protection System",
		},
		risk:     72,
		category: threat.CategoryBiotechMalware,
		summary:  "Initial assessment shows signs of biotech malware activity. Malware specifically designed to target laboratory equipment detected.",
		conf:     0.89,
		steps: []string{
			"Isolate affected laboratory systems immediately",
			"Run comprehensive malware scan on all connected devices",
			"Review recent software installations and updates",
			"Enable enhanced monitoring on lab equipment networks",
		},
		priority: threat.PriorityHigh,
		impact:   "May affect research integrity and timelines",
		insight:  "Similar incidents have been reported in 3 other facilities this quarter. This threat pattern aligns with recent industry-wide trends in biotech security.",
		related:  []string{"threat-007", "threat-011"},
	},
	{
		id:      "threat-004",
		daysAgo: 3,
		input: threat.Input{
			Title:       "Unusual Data Access Pattern by Research Staff",
			Description: "User activity logs show researcher accessing multiple restricted databases outside normal working hours. Pattern differs significantly from typical access behavior.",
			Date:        "2024-01-12",
			Source:      "User Activity Monitor",
		},
		risk:     65,
		category: threat.CategoryInsider,
		summary:  "Pattern matching suggests insider threat behavior. Unusual access patterns indicate potential unauthorized data access.",
		conf:     0.76,
		steps: []string{
			"Conduct confidential employee interviews",
			"Review user activity logs across all systems",
			"Implement enhanced monitoring on flagged accounts",
			"Restrict access to sensitive data temporarily",
		},
		priority: threat.PriorityHigh,
		impact:   "Possible regulatory compliance implications",
		insight:  "This threat pattern aligns with recent industry-wide trends in biotech security. Similar incidents have been reported in 3 other facilities this quarter.",
		related:  []string{"threat-009"},
	},
	{
		id:      "threat-005",
		daysAgo: 4,
		input: threat.Input{
			Title:       "Compromised Vendor Software Package",
			Description: "Security audit revealed that recent software update from equipment vendor contains suspicious code. Package was downloaded from vendor portal but signature verification failed.",
			Date:        "2024-01-11",
			Source:      "Supply Chain Audit",
		},
		risk:     68,
		category: threat.CategorySupplyChain,
		summary:  "Detected potential supply chain compromise targeting biotech infrastructure. Vendor software integrity compromised.",
		conf:     0.81,
		steps: []string{
			"Verify integrity of recent equipment deliveries",
			"Audit vendor access to systems and facilities",
			"Review all third-party software installations",
			"Implement enhanced supplier verification protocols",
		},
		priority: threat.PriorityHigh,
		impact:   "Risk of data loss or compromise",
		insight:  "Threat actor methodology suggests state-sponsored activity. Advanced persistent threat (APT) characteristics detected in the attack vector.",
		related:  []string{"threat-001", "threat-010"},
	},
	{
		id:      "threat-006",
		daysAgo: 2,
		input: threat.Input{
			Title:       "Large Data Transfer Detected",
			Description: "Network monitoring detected unusually large data transfer from research database to external IP address. Transfer occurred during maintenance window.",
			Date:        "2024-01-10",
			Source:      "Network Traffic Analyzer",
		},
		risk:     82,
		category: threat.CategoryDataExfiltration,
		summary:  "Threat analysis indicates data exfiltration with moderate to high risk. Large volume data transfer to unknown destination detected.",
		conf:     0.91,
		steps: []string{
			"Audit data access logs for unusual patterns",
			"Implement temporary network segmentation",
			"Review outbound network traffic for anomalies",
			"Verify data encryption on all storage systems",
		},
		priority: threat.PriorityCritical,
		impact:   "Risk of data loss or compromise",
		insight:  "Similar incidents have been reported in 3 other facilities this quarter. This threat pattern aligns with recent industry-wide trends in biotech security.",
		related:  []string{"threat-001", "threat-012"},
	},
	{
		id:      "threat-007",
		daysAgo: 1,
		input: threat.Input{
			Title:       "Ransomware Detection on Backup Server",
			Description: "Backup server detected ransomware encryption attempt. System automatically isolated affected volumes. No production systems appear compromised.",
			Date:        "2024-01-09",
			Source:      "Backup System Monitor",
		},
		risk:     88,
		category: threat.CategoryBiotechMalware,
		summary:  "Initial assessment shows signs of biotech malware activity. Ransomware specifically targeting backup infrastructure detected.",
		conf:     0.94,
		steps: []string{
			"Isolate affected laboratory systems immediately",
			"Run comprehensive malware scan on all connected devices",
			"Review recent software installations and updates",
			"Enable enhanced monitoring on lab equipment networks",
		},
		priority: threat.PriorityCritical,
		impact:   "Potential for significant operational disruption",
		insight:  "Advanced persistent threat (APT) characteristics detected in the attack vector. Threat actor methodology suggests state-sponsored activity.",
		related:  []string{"threat-003", "threat-011"},
	},
}

// SampleThreats returns the seven demonstration threats, fully analyzed,
// with creation times relative to now. Each call returns fresh values.
func SampleThreats(now time.Time) []*threat.Threat {
	out := make([]*threat.Threat, 0, len(samples))
	for _, s := range samples {
		at := now.UTC().Add(-time.Duration(s.daysAgo) * 24 * time.Hour)
		l3 := threat.ContextInsights{
			ContextualInsights: s.insight,
			RelatedThreats:     append([]string(nil), s.related...),
			Timestamp:          at,
		}
		out = append(out, threat.NewAnalyzed(s.input, s.id, threat.Analysis{
			Layer1: threat.Assessment{
				Risk:       s.risk,
				Category:   s.category,
				Summary:    s.summary,
				Confidence: s.conf,
				Timestamp:  at,
			},
			Layer2: threat.MitigationPlan{
				Mitigations:        append([]string(nil), s.steps...),
				Priority:           s.priority,
				EstimatedImpact:    s.impact,
				RecommendedActions: append([]string(nil), sampleActions...),
				Timestamp:          at,
			},
			Layer3: &l3,
		}, at))
	}
	return out
}
