package config

// ExecutionMode selects the cost/quality trade-off for a request.
type ExecutionMode string

const (
	// ModeFast optimizes for latency and cost over quality
	ModeFast ExecutionMode = "FAST"
	// ModeBalanced is the default cost/quality trade-off
	ModeBalanced ExecutionMode = "BALANCED"
	// ModeBestQuality optimizes for answer quality regardless of cost
	ModeBestQuality ExecutionMode = "BEST_QUALITY"
)

// IsValid checks if the execution mode is valid
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ModeFast, ModeBalanced, ModeBestQuality:
		return true
	default:
		return false
	}
}

// TaskType classifies a subtask for routing purposes.
type TaskType string

const (
	TaskCodeGeneration TaskType = "CODE_GENERATION"
	TaskDebugging      TaskType = "DEBUGGING"
	TaskReasoning      TaskType = "REASONING"
	TaskResearch       TaskType = "RESEARCH"
	TaskFactCheck      TaskType = "FACT_CHECK"
	TaskVerification   TaskType = "VERIFICATION"
	TaskCreative       TaskType = "CREATIVE"
)

// TaskTypeSpecificity is the fixed tie-break order used when a subtask
// matches several types: the earliest matching type wins.
var TaskTypeSpecificity = []TaskType{
	TaskCodeGeneration,
	TaskDebugging,
	TaskReasoning,
	TaskResearch,
	TaskFactCheck,
	TaskVerification,
	TaskCreative,
}

// IsValid checks if the task type is valid
func (t TaskType) IsValid() bool {
	for _, known := range TaskTypeSpecificity {
		if t == known {
			return true
		}
	}
	return false
}

// Complexity is the analyzer's classification of an incoming prompt.
type Complexity string

const (
	ComplexityTrivial  Complexity = "TRIVIAL"
	ComplexitySimple   Complexity = "SIMPLE"
	ComplexityCompound Complexity = "COMPOUND"
	ComplexityComplex  Complexity = "COMPLEX"
)

// IsValid checks if the complexity level is valid
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexityTrivial, ComplexitySimple, ComplexityCompound, ComplexityComplex:
		return true
	default:
		return false
	}
}

// RiskLevel is an agent's self-assessed risk of its own answer being wrong.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// IsValid checks if the risk level is valid
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// AtLeast reports whether r is at or above the given level.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.ordinal() >= other.ordinal()
}

func (r RiskLevel) ordinal() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// DeploymentMode controls which model families the registry loads.
type DeploymentMode string

const (
	// DeploymentLocal keeps only locally-hosted models (e.g. Ollama)
	DeploymentLocal DeploymentMode = "LOCAL"
	// DeploymentCloud keeps only hosted API models
	DeploymentCloud DeploymentMode = "CLOUD"
	// DeploymentHybrid keeps both (default)
	DeploymentHybrid DeploymentMode = "HYBRID"
)

// IsValid checks if the deployment mode is valid
func (d DeploymentMode) IsValid() bool {
	switch d {
	case DeploymentLocal, DeploymentCloud, DeploymentHybrid:
		return true
	default:
		return false
	}
}

// Role is the caller's quota class for rate limiting.
type Role string

const (
	RoleDemo          Role = "demo"
	RoleAuthenticated Role = "authenticated"
	RoleAdmin         Role = "admin"
)

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleDemo, RoleAuthenticated, RoleAdmin:
		return true
	default:
		return false
	}
}
