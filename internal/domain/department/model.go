// Package department serves the hospital's fixed department reference data.
package department

type Department struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Head           string `json:"head"`
	TotalStaff     int    `json:"total_staff"`
	ActivePatients int    `json:"active_patients"`
}

type Stats struct {
	TotalPatients    int     `json:"total_patients"`
	CriticalPatients int     `json:"critical_patients"`
	RecentAdmissions int     `json:"recent_admissions"`
	AverageStayDays  float64 `json:"average_stay_days"`
	StaffOnDuty      int     `json:"staff_on_duty"`
}

// seed is the read-only reference table, in display order.
var seed = []struct {
	Department
	stats Stats
}{
	{
		Department{"cardiology", "Cardiology", "Heart and cardiovascular system care", "Dr. Sarah Wilson", 25, 45},
		Stats{TotalPatients: 45, CriticalPatients: 5, RecentAdmissions: 8, AverageStayDays: 4.2, StaffOnDuty: 15},
	},
	{
		Department{"neurology", "Neurology", "Brain and nervous system care", "Dr. Michael Johnson", 20, 35},
		Stats{TotalPatients: 35, CriticalPatients: 3, RecentAdmissions: 6, AverageStayDays: 6.1, StaffOnDuty: 12},
	},
	{
		Department{"general-medicine", "General Medicine", "General medical care and internal medicine", "Dr. Emily Davis", 30, 60},
		Stats{TotalPatients: 60, CriticalPatients: 2, RecentAdmissions: 12, AverageStayDays: 3.8, StaffOnDuty: 18},
	},
	{
		Department{"pediatrics", "Pediatrics", "Children's healthcare", "Dr. David Lee", 18, 25},
		Stats{TotalPatients: 25, CriticalPatients: 1, RecentAdmissions: 4, AverageStayDays: 2.5, StaffOnDuty: 10},
	},
	{
		Department{"oncology", "Oncology", "Cancer treatment and care", "Dr. Jennifer Brown", 22, 30},
		Stats{TotalPatients: 30, CriticalPatients: 8, RecentAdmissions: 5, AverageStayDays: 7.2, StaffOnDuty: 14},
	},
}
