package domain

// Population names the table a threshold rule scans
type Population string

const (
	PopulationTutorProfiles Population = "tutor_profiles"
	PopulationUserStats     Population = "user_stats"
)

// Field is a numeric attribute a threshold may test
type Field string

const (
	FieldAvgRating         Field = "avg_rating"
	FieldTotalRatings      Field = "total_ratings"
	FieldSessionsLastMonth Field = "sessions_last_month"
	FieldResponseTime      Field = "response_time_seconds"
	FieldAvailabilityScore Field = "availability_score"

	FieldMaterialsUploaded Field = "materials_uploaded"
	FieldAvgLikes          Field = "avg_likes"
	FieldSessionsCompleted Field = "sessions_completed"
	FieldTotalStudyHours   Field = "total_study_hours"
	FieldGoalsCompleted    Field = "goals_completed"
)

// PopulationFields lists the fields each population exposes to rules
var PopulationFields = map[Population][]Field{
	PopulationTutorProfiles: {FieldAvgRating, FieldTotalRatings, FieldSessionsLastMonth, FieldResponseTime, FieldAvailabilityScore},
	PopulationUserStats:     {FieldMaterialsUploaded, FieldAvgLikes, FieldSessionsCompleted, FieldTotalStudyHours, FieldGoalsCompleted},
}

// Supports reports whether f belongs to population p
func (p Population) Supports(f Field) bool {
	for _, field := range PopulationFields[p] {
		if field == f {
			return true
		}
	}
	return false
}

// Threshold requires Field >= Min
type Threshold struct {
	Field Field
	Min   float64
}

// Selector chooses the users eligible for a rule. It is one of
// MinThresholds or TopN.
type Selector interface {
	selector()
}

// MinThresholds selects every row of Population meeting all thresholds
type MinThresholds struct {
	Population Population
	Thresholds []Threshold
}

// TopN selects the N users with the most points, ties broken by user ID
type TopN struct {
	N int
}

func (MinThresholds) selector() {}
func (TopN) selector()          {}

// Rule binds a selector to the badge it grants
type Rule struct {
	Key       string
	BadgeName string
	Reason    string
	Selector  Selector
}

const (
	RuleTutorDestacado    = "tutor_destacado"
	RuleColaboradorActivo = "colaborador_activo"
	RuleMentorDelMes      = "mentor_del_mes"
)

// DefaultRules returns the rules run by every evaluation, in order
func DefaultRules() []Rule {
	return []Rule{
		{
			Key:       RuleTutorDestacado,
			BadgeName: "Tutor Destacado",
			Reason:    "Automático: avgRating >= 4.8 y 20+ sesiones",
			Selector: MinThresholds{
				Population: PopulationTutorProfiles,
				Thresholds: []Threshold{
					{Field: FieldAvgRating, Min: 4.8},
					{Field: FieldSessionsLastMonth, Min: 20},
				},
			},
		},
		{
			Key:       RuleColaboradorActivo,
			BadgeName: "Colaborador Activo",
			Reason:    "Automático: 10+ materiales con 5+ likes promedio",
			Selector: MinThresholds{
				Population: PopulationUserStats,
				Thresholds: []Threshold{
					{Field: FieldMaterialsUploaded, Min: 10},
					{Field: FieldAvgLikes, Min: 5},
				},
			},
		},
		{
			Key:       RuleMentorDelMes,
			BadgeName: "Mentor del Mes",
			Reason:    "Automático: Top 3 en puntos del mes",
			Selector:  TopN{N: 3},
		},
	}
}

// DefaultBadges are the badge definitions installed at bootstrap
func DefaultBadges() []CreateBadgeRequest {
	return []CreateBadgeRequest{
		{
			Name:        "Tutor Destacado",
			Description: "Tutor con avgRating >= 4.8 y 20+ sesiones en el mes",
			Criteria:    `{"avgRating":{"gte":4.8},"sessionsLastMonth":{"gte":20}}`,
			IconURL:     "/assets/badges/star.png",
		},
		{
			Name:        "Colaborador Activo",
			Description: "Usuario con 10+ materiales subidos y 5+ likes promedio",
			Criteria:    `{"materialsUploaded":{"gte":10},"avgLikes":{"gte":5}}`,
			IconURL:     "/assets/badges/active.png",
		},
		{
			Name:        "Mentor del Mes",
			Description: "Top 3 en puntos ganados durante el mes",
			Criteria:    `{"rank":{"lte":3}}`,
			IconURL:     "/assets/badges/trophy.png",
		},
		{
			Name:        "Principiante",
			Description: "Primera sesión completada",
			Criteria:    `{"sessionsCompleted":{"gte":1}}`,
			IconURL:     "/assets/badges/beginner.png",
		},
		{
			Name:        "Estudiante Dedicado",
			Description: "50+ horas de estudio acumuladas",
			Criteria:    `{"totalStudyHours":{"gte":50}}`,
			IconURL:     "/assets/badges/dedicated.png",
		},
	}
}

// RuleResult is the outcome of one rule in an evaluation run
type RuleResult struct {
	Rule       string `json:"rule"`
	Badge      string `json:"badge"`
	Candidates int    `json:"candidates"`
	Granted    int    `json:"granted"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// EvaluationResult aggregates per-rule counts of newly granted awards
type EvaluationResult struct {
	Rules        []RuleResult `json:"rules"`
	TotalGranted int          `json:"total_granted"`
}

// Granted returns the count for a rule key, or 0 if the rule did not run
func (r EvaluationResult) Granted(rule string) int {
	for _, rr := range r.Rules {
		if rr.Rule == rule {
			return rr.Granted
		}
	}
	return 0
}
